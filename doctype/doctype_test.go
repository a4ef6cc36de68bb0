package doctype

import "testing"

func Test_FromPath(t *testing.T) {
	tests := []struct {
		path string
		want Type
	}{
		{"notes.md", Markdown},
		{"README.MD", Markdown},
		{"scripts/run.ps1", PowerShell},
		{"deploy.bat", Batch},
		{"index.htm", HTML},
		{"inbox.mbox", Mailbox},
		{"report.pdf", PDF},
		{"data.yaml", Other},
		{"Makefile", Other},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := FromPath(tt.path); got != tt.want {
				t.Errorf("FromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func Test_Parse(t *testing.T) {
	if got, ok := Parse(" MD "); !ok || got != Markdown {
		t.Errorf("Parse(MD) = %q, %v", got, ok)
	}
	if _, ok := Parse("docx"); ok {
		t.Error("expected docx to be rejected")
	}
	if _, ok := Parse(""); ok {
		t.Error("expected empty type to be rejected")
	}
}

func Test_IsBinaryContent(t *testing.T) {
	if IsBinaryContent([]byte("plain text\nwith lines")) {
		t.Error("text reported as binary")
	}
	if !IsBinaryContent([]byte{'P', 'K', 0, 3, 4}) {
		t.Error("null bytes not reported as binary")
	}
	if IsBinaryContent(nil) {
		t.Error("empty input reported as binary")
	}
}
