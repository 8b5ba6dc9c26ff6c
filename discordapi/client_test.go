package discordapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// recordedRequest captures one call made against the test server.
type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		if handler != nil {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)
	return &Client{BotToken: "bot-tok", AppID: "app-1", BaseURL: server.URL}, &requests
}

func TestGuildRoles(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"guild-1","name":"@everyone"},{"id":"r2","name":"3 Smith"}]`))
	})

	roles, err := c.GuildRoles(context.Background(), "guild-1")
	if err != nil {
		t.Fatalf("GuildRoles() error = %v", err)
	}
	if len(roles) != 2 || roles[1].Name != "3 Smith" {
		t.Errorf("GuildRoles() = %+v", roles)
	}

	got := (*reqs)[0]
	if got.Method != http.MethodGet || got.Path != "/guilds/guild-1/roles" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	if got.Auth != "Bot bot-tok" {
		t.Errorf("Authorization = %q", got.Auth)
	}
}

func TestCreateRole(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"r9","name":"3 Smith"}`))
	})

	role, err := c.CreateRole(context.Background(), "guild-1", "3 Smith")
	if err != nil {
		t.Fatalf("CreateRole() error = %v", err)
	}
	if role.ID != "r9" {
		t.Errorf("CreateRole() = %+v", role)
	}

	var body map[string]string
	if err := json.Unmarshal((*reqs)[0].Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body["name"] != "3 Smith" {
		t.Errorf("request body = %v", body)
	}
}

func TestCreateChannelSendsOverwrites(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","name":"smith","type":0}`))
	})

	ch, err := c.CreateChannel(context.Background(), "guild-1", "smith", []PermissionOverwrite{DenyView("guild-1")})
	if err != nil {
		t.Fatalf("CreateChannel() error = %v", err)
	}
	if ch.ID != "c1" {
		t.Errorf("CreateChannel() = %+v", ch)
	}

	var body struct {
		Name       string                `json:"name"`
		Type       int                   `json:"type"`
		Overwrites []PermissionOverwrite `json:"permission_overwrites"`
	}
	if err := json.Unmarshal((*reqs)[0].Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.Type != ChannelTypeGuildText {
		t.Errorf("channel type = %d", body.Type)
	}
	if len(body.Overwrites) != 1 || body.Overwrites[0].ID != "guild-1" || body.Overwrites[0].Deny != "1024" {
		t.Errorf("overwrites = %+v", body.Overwrites)
	}
}

func TestEditChannelPermissionsTargetsOverwriteID(t *testing.T) {
	c, reqs := newTestClient(t, nil)

	if err := c.EditChannelPermissions(context.Background(), "c1", AllowView("r9")); err != nil {
		t.Fatalf("EditChannelPermissions() error = %v", err)
	}

	got := (*reqs)[0]
	if got.Method != http.MethodPut || got.Path != "/channels/c1/permissions/r9" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	var body struct {
		Type  int    `json:"type"`
		Allow string `json:"allow"`
		Deny  string `json:"deny"`
	}
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if body.Allow != "1024" || body.Deny != "0" || body.Type != OverwriteTypeRole {
		t.Errorf("body = %+v", body)
	}
}

func TestMemberRoleMutations(t *testing.T) {
	c, reqs := newTestClient(t, nil)
	ctx := context.Background()

	if err := c.AddMemberRole(ctx, "guild-1", "user-1", "r9"); err != nil {
		t.Fatalf("AddMemberRole() error = %v", err)
	}
	if err := c.RemoveMemberRole(ctx, "guild-1", "user-1", "r9"); err != nil {
		t.Fatalf("RemoveMemberRole() error = %v", err)
	}

	want := []string{
		"PUT /guilds/guild-1/members/user-1/roles/r9",
		"DELETE /guilds/guild-1/members/user-1/roles/r9",
	}
	for i, r := range *reqs {
		if got := r.Method + " " + r.Path; got != want[i] {
			t.Errorf("request[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestSendMessageOmitsEmptyContent(t *testing.T) {
	c, reqs := newTestClient(t, nil)

	components := []Component{ButtonRow(ActionButton("Continue with Schoology", "oauth"))}
	if err := c.SendMessage(context.Background(), "c1", "", components); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal((*reqs)[0].Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if _, ok := body["content"]; ok {
		t.Error("component-only message carried an empty content field")
	}
	if _, ok := body["components"]; !ok {
		t.Error("components missing from request body")
	}
}

func TestCreateDM(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"dm-1","type":1}`))
	})

	ch, err := c.CreateDM(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateDM() error = %v", err)
	}
	if ch.ID != "dm-1" {
		t.Errorf("CreateDM() = %+v", ch)
	}
	got := (*reqs)[0]
	if got.Path != "/users/@me/channels" {
		t.Errorf("path = %s", got.Path)
	}
	if !strings.Contains(string(got.Body), `"recipient_id":"user-1"`) {
		t.Errorf("body = %s", got.Body)
	}
}

func TestErrorCarriesResponseBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Missing Permissions","code":50013}`))
	})

	_, err := c.CreateRole(context.Background(), "guild-1", "3 Smith")
	if err == nil {
		t.Fatal("CreateRole() succeeded on 403")
	}
	if !strings.Contains(err.Error(), "Missing Permissions") {
		t.Errorf("error lost the API explanation: %v", err)
	}
}

func TestRegisterGuildCommands(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	cmds := []ApplicationCommand{{Name: "setup", Description: "Post the link button"}}
	if err := c.RegisterGuildCommands(context.Background(), "guild-1", cmds); err != nil {
		t.Fatalf("RegisterGuildCommands() error = %v", err)
	}

	got := (*reqs)[0]
	if got.Method != http.MethodPut || got.Path != "/applications/app-1/guilds/guild-1/commands" {
		t.Errorf("request = %s %s", got.Method, got.Path)
	}
	var body []ApplicationCommand
	if err := json.Unmarshal(got.Body, &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if len(body) != 1 || body[0].Name != "setup" {
		t.Errorf("body = %+v", body)
	}
}
