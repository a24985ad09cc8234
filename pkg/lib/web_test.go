package lib

import "testing"

func TestStripURLHost(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{name: "plain host", url: "https://mastodon.social", want: "mastodon.social"},
		{name: "www stripped", url: "https://www.example.com/path", want: "example.com"},
		{name: "no host", url: "/relative/path", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StripURLHost(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("StripURLHost(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("StripURLHost(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
