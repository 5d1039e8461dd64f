package hypervisor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Virsh is the production Hypervisor, shelling out to libvirt's virsh CLI
// the same way debugger.Process shells out to gdb — no libvirt Go binding
// appears anywhere in the example pack, so this follows the one
// subprocess-orchestration idiom the corpus does show rather than
// fabricating a binding dependency.
type Virsh struct {
	// Connect is the libvirt connection URI, e.g. "qemu:///system".
	Connect string
}

func NewVirsh(connect string) *Virsh {
	if connect == "" {
		connect = "qemu:///system"
	}
	return &Virsh{Connect: connect}
}

func (v *Virsh) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-c", v.Connect}, args...)
	cmd := exec.CommandContext(ctx, "virsh", full...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("virsh %s: %w: %s", strings.Join(args, " "), err, out.String())
	}
	return out.String(), nil
}

func (v *Virsh) Lookup(ctx context.Context, name string) (bool, bool, error) {
	out, err := v.run(ctx, "domstate", name)
	if err != nil {
		if strings.Contains(err.Error(), "failed to get domain") {
			return false, false, nil
		}
		return false, false, err
	}
	state := strings.TrimSpace(out)
	return true, state == "running", nil
}

func (v *Virsh) Create(ctx context.Context, name string) error {
	_, err := v.run(ctx, "start", name)
	return err
}

func (v *Virsh) Destroy(ctx context.Context, name string) error {
	_, err := v.run(ctx, "destroy", name)
	return err
}

func (v *Virsh) Describe(ctx context.Context, name string) ([]byte, error) {
	out, err := v.run(ctx, "dumpxml", name)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}
