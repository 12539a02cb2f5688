package api

import "testing"

func TestClassifyType(t *testing.T) {
	tests := []struct {
		key  string
		want Classification
	}{
		{"photo.jpeg", Accepted},
		{"photo.JPEG", Accepted},
		{"vacation photo.png", Accepted},
		{"archive.tar.PnG", Accepted},
		{"photo.jpg", Rejected},
		{"scan.pdf", Rejected},
		{"dir.v2/photo", Rejected},
		{"noextension", Indeterminate},
		{"trailingdot.", Indeterminate},
		{"", Indeterminate},
	}
	for _, tt := range tests {
		if got := ClassifyType(tt.key); got != tt.want {
			t.Errorf("ClassifyType(%q) = %s, want %s", tt.key, got, tt.want)
		}
	}
}

func TestWhitelist(t *testing.T) {
	w := DefaultWhitelist()
	for _, name := range []string{"Caption", "Date", "Photographer"} {
		if !w.Allows(name) {
			t.Errorf("expected %s to be allowed", name)
		}
	}
	for _, name := range []string{"", "caption", "ImageName", "Location"} {
		if w.Allows(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
	custom := NewWhitelist("Caption")
	if custom.Allows("Date") {
		t.Errorf("custom whitelist should not allow Date")
	}
	widened := NewWhitelist("Caption", "Location", "ImageName")
	if diff := widened.Names(); len(diff) != 1 || diff[0] != "Caption" {
		t.Errorf("whitelist must only hold image attributes, got %v", diff)
	}
	var zero Whitelist
	if zero.Allows("Caption") {
		t.Errorf("zero whitelist should allow nothing")
	}
}

func TestImageSet(t *testing.T) {
	var img Image
	if !img.Set(AttributeDate, "2023-05-01") || img.Date != "2023-05-01" {
		t.Errorf("Set Date failed: %+v", img)
	}
	if img.Set("ImageName", "other") {
		t.Errorf("Set should refuse the key attribute")
	}
}
