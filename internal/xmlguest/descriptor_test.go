package xmlguest

import "testing"

const sampleDomain = `<domain>
  <name>g1</name>
  <os><kernel>/boot/vmlinuz-g1</kernel></os>
  <devices>
    <disk><source file="/var/lib/libvirt/images/g1.img"/></disk>
  </devices>
</domain>`

func TestSelectElementText(t *testing.T) {
	d, err := Parse([]byte(sampleDomain))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, err := d.SelectOne("/domain/name")
	if err != nil {
		t.Fatalf("SelectOne: %v", err)
	}
	if got != "g1" {
		t.Errorf("name = %q, want %q", got, "g1")
	}
}

func TestSelectTextFunction(t *testing.T) {
	d, _ := Parse([]byte(sampleDomain))

	got, err := d.SelectOne("/domain/os/kernel/text()")
	if err != nil {
		t.Fatalf("SelectOne: %v", err)
	}
	if got != "/boot/vmlinuz-g1" {
		t.Errorf("kernel = %q, want %q", got, "/boot/vmlinuz-g1")
	}
}

func TestSelectAttribute(t *testing.T) {
	d, _ := Parse([]byte(sampleDomain))

	got, err := d.SelectOne("/domain/devices/disk/source/@file")
	if err != nil {
		t.Fatalf("SelectOne: %v", err)
	}
	if got != "/var/lib/libvirt/images/g1.img" {
		t.Errorf("disk source = %q, want %q", got, "/var/lib/libvirt/images/g1.img")
	}
}

func TestSelectNoMatch(t *testing.T) {
	d, _ := Parse([]byte(sampleDomain))

	results, err := d.Select("/domain/nonexistent")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no matches, got %v", results)
	}

	if _, err := d.SelectOne("/domain/nonexistent"); err == nil {
		t.Error("SelectOne: expected error for no match")
	}
}

func TestSelectWrongRoot(t *testing.T) {
	d, _ := Parse([]byte(sampleDomain))

	if _, err := d.Select("/notdomain/name"); err == nil {
		t.Error("expected error for mismatched root element")
	}
}
