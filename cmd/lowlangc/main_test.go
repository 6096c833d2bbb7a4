package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"dump-ir", "dump-rtti", "emit-asm", "target", "output"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestRunPipelineEmitsAsm(t *testing.T) {
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "identity") {
		t.Errorf("expected emitted assembly to mention identity, got %q", output)
	}
	if !strings.Contains(output, "main") {
		t.Errorf("expected emitted assembly to mention main, got %q", output)
	}
}

func TestDumpIRFlag(t *testing.T) {
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--dump-ir", "--emit-asm=false"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "module demo") {
		t.Errorf("expected IR dump to mention the demo module, got %q", output)
	}
	if !strings.Contains(output, "func identity") {
		t.Errorf("expected IR dump to mention func identity, got %q", output)
	}
}

func TestDumpRTTIFlag(t *testing.T) {
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--dump-rtti", "--emit-asm=false"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "data symbols") {
		t.Errorf("expected RTTI dump output, got %q", output)
	}
}

func TestOutputFlagWritesFile(t *testing.T) {
	resetFlags()

	tmpDir := t.TempDir()
	outPath := filepath.Join(tmpDir, "demo.s")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-o", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("expected %s to be created: %v", outPath, err)
	}
	if !strings.Contains(string(data), "identity") {
		t.Errorf("expected output file to contain emitted assembly, got %q", string(data))
	}
}

func TestTargetFlagRejectsBadPointerSize(t *testing.T) {
	resetFlags()

	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "target.yaml")
	if err := os.WriteFile(cfgPath, []byte("pointer_size: 3\nendianness: little\n"), 0644); err != nil {
		t.Fatalf("failed to write target config: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--target", cfgPath})
	err := cmd.Execute()

	if err == nil {
		t.Fatal("expected an error for an unsupported pointer size")
	}
	if !strings.Contains(errOut.String(), "pointer_size") {
		t.Errorf("expected stderr to mention the bad pointer_size, got %q", errOut.String())
	}
}

// resetFlags restores every package-level flag variable to its
// zero/default value between subtests, since cobra.Command.Flags()
// binds directly to these package variables and Execute does not reset
// them on its own.
func resetFlags() {
	dumpIR = false
	dumpRTTI = false
	emitAsm = true
	targetFile = ""
	outFile = ""
}
