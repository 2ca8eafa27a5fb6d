package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stake-plus/hermes/src/cluster"
)

// redirect sends every request to the test server, keeping the path.
type redirect struct{ target *url.URL }

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestParseWebhookURL(t *testing.T) {
	id, token, err := ParseWebhookURL("https://discord.com/api/webhooks/123/abc-DEF?wait=true")
	if err != nil || id != "123" || token != "abc-DEF" {
		t.Fatalf("ParseWebhookURL = (%q, %q, %v)", id, token, err)
	}
	for _, bad := range []string{"", "https://example.com/hook", "https://discord.com/api/webhooks/123"} {
		if _, _, err := ParseWebhookURL(bad); err == nil {
			t.Errorf("ParseWebhookURL(%q) accepted", bad)
		}
	}
}

func TestWrapURLsNoEmbed(t *testing.T) {
	got := WrapURLsNoEmbed("see https://example.com/a, then stop.")
	if got != "see <https://example.com/a>, then stop." {
		t.Fatalf("WrapURLsNoEmbed = %q", got)
	}
}

func TestEmbedDescriptionTruncatesOnRuneBoundary(t *testing.T) {
	n := &Notifier{}
	template := strings.Repeat("é", maxDescription+10)
	got := n.buildEmbed(cluster.Formed{ID: "c-1", Template: template}).Description
	if !utf8.ValidString(got) {
		t.Fatal("description is not valid UTF-8")
	}
	if !strings.HasSuffix(got, "...") || utf8.RuneCountInString(got) != maxDescription+3 {
		t.Fatalf("description has %d runes", utf8.RuneCountInString(got))
	}
	if short := n.buildEmbed(cluster.Formed{Template: "Garlic [cures] covid"}).Description; short != "Garlic [cures] covid" {
		t.Fatalf("short description = %q", short)
	}
}

func TestClusterFormedPostsEmbed(t *testing.T) {
	var path string
	var body struct {
		Username string `json:"username"`
		Embeds   []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Fields      []struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			} `json:"fields"`
		} `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewNotifier("https://discord.com/api/webhooks/42/secret", "")
	if err != nil {
		t.Fatal(err)
	}
	target, _ := url.Parse(srv.URL)
	n.session.Client = &http.Client{Transport: redirect{target: target}}

	err = n.ClusterFormed(context.Background(), cluster.Formed{ID: "c-1", HeadID: "r-1", Template: "Garlic [cures/prevents] covid", Variations: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(path, "/webhooks/42/secret") {
		t.Fatalf("path = %q", path)
	}
	if body.Username != "Hermes" || len(body.Embeds) != 1 || body.Embeds[0].Description != "Garlic [cures/prevents] covid" {
		t.Fatalf("body = %+v", body)
	}
	if f := body.Embeds[0].Fields; len(f) != 2 || f[0].Value != "3" {
		t.Fatalf("fields = %+v", f)
	}
}
