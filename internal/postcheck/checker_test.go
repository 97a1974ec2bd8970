package postcheck

import (
	"strings"
	"testing"
)

func TestParsePostLink(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		wantUser string
		wantID   int64
		wantErr  bool
	}{
		{"full https", "https://t.me/mychannel/123", "mychannel", 123, false},
		{"http scheme", "http://t.me/mychannel/7", "mychannel", 7, false},
		{"no scheme", "t.me/some_channel/456", "some_channel", 456, false},
		{"query suffix", "https://t.me/mychannel/123?single", "mychannel", 123, false},
		{"surrounding spaces", "  https://t.me/mychannel/123  ", "mychannel", 123, false},
		{"missing message id", "https://t.me/mychannel", "", 0, true},
		{"zero message id", "https://t.me/mychannel/0", "", 0, true},
		{"not telegram", "https://example.com/mychannel/123", "", 0, true},
		{"empty", "", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, id, err := ParsePostLink(tt.link)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParsePostLink(%q) succeeded, want error", tt.link)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePostLink(%q): %v", tt.link, err)
			}
			if user != tt.wantUser || id != tt.wantID {
				t.Errorf("ParsePostLink(%q) = (%q, %d), want (%q, %d)", tt.link, user, id, tt.wantUser, tt.wantID)
			}
		})
	}
}

func TestParsePostPage(t *testing.T) {
	t.Run("post with text", func(t *testing.T) {
		html := `<div class="tgme_widget_message"><div class="tgme_widget_message_text">Big summer promo, details inside</div></div>`
		exists, text, err := parsePostPage(strings.NewReader(html))
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Error("existing post reported as missing")
		}
		if text != "Big summer promo, details inside" {
			t.Errorf("text = %q", text)
		}
	})

	t.Run("media only post", func(t *testing.T) {
		html := `<div class="tgme_widget_message"><div class="tgme_widget_message_photo"></div></div>`
		exists, text, err := parsePostPage(strings.NewReader(html))
		if err != nil {
			t.Fatal(err)
		}
		if !exists {
			t.Error("media-only post reported as missing")
		}
		if text != "" {
			t.Errorf("unexpected text %q", text)
		}
	})

	t.Run("deleted post", func(t *testing.T) {
		html := `<div class="tgme_page">Post not found</div>`
		exists, _, err := parsePostPage(strings.NewReader(html))
		if err != nil {
			t.Fatal(err)
		}
		if exists {
			t.Error("deleted post reported as existing")
		}
	})
}
