package asm_test

import (
	"strings"
	"testing"

	"github.com/mykespb/stack-machine/asm"
	"github.com/mykespb/stack-machine/bytecode"
)

func TestAssemble_literals(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("5 7 add printnum end"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []byte{'S', 'M', '1', '1', 73, 5, 73, 7, 21, 60, 2, 243}
	if string(img) != string(want) {
		t.Errorf("got % x, want % x", []byte(img), want)
	}
	if err := img.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestAssemble_forwardLabel(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("label L 1 printnum jump L end"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := []byte{'S', 'M', '1', '1', 73, 1, 60, 30, 0, 4, 2, 172}
	if string(img) != string(want) {
		t.Errorf("got % x, want % x", []byte(img), want)
	}
}

func TestAssemble_charAndString(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader(`'A' "hi" end`))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[4 : len(img)-1]
	want := []byte{70, 'A', 72, 2, 'h', 'i', 2}
	if string(body) != string(want) {
		t.Errorf("body = % x, want % x", body, want)
	}
}

func TestAssemble_const(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("const WIDTH 10 WIDTH printnum end"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[4 : len(img)-1]
	want := []byte{73, 10, 60, 2} // byte 10, printnum, end
	if string(body) != string(want) {
		t.Errorf("body = % x, want % x", body, want)
	}
}

func TestAssemble_ifThenElse(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("0 if 1 printnum else 2 printnum then end"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := img.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	body := img[4 : len(img)-1]
	for i := 0; i+2 < len(body); i++ {
		if body[i] == 31 && body[i+1] == 0 && body[i+2] == 0 {
			t.Errorf("unresolved jeq placeholder at %d", i)
		}
	}
}

func TestAssemble_macro(t *testing.T) {
	src := "macro pair\n$0 $0\n\n_pair 9\nadd end"
	img, err := asm.Assemble(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	body := img[4 : len(img)-1]
	want := []byte{73, 9, 73, 9, 21, 2} // byte 9, byte 9, add, end
	if string(body) != string(want) {
		t.Errorf("body = % x, want % x", body, want)
	}
}

func TestAssemble_errors(t *testing.T) {
	cases := []string{
		"bogus_token end",
		"else end",
		"then end",
		"while end",
		"repeat end",
		"loop end",
		"label L label L end",
		"const FOO 1 const FOO 2 end",
		"jump nowhere end",
	}
	for _, src := range cases {
		if _, err := asm.Assemble(strings.NewReader(src)); err == nil {
			t.Errorf("Assemble(%q): expected error, got nil", src)
		}
	}
}

func TestAssemble_emitOnError(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("5 bogus_token end"), asm.EmitOnError(true))
	if err == nil {
		t.Fatal("expected error")
	}
	if img == nil {
		t.Fatal("expected a partial image with EmitOnError(true)")
	}
	if len(img) == 0 || img[0] != 'S' {
		t.Errorf("partial image missing header: % x", []byte(img))
	}
}

func TestAssemble_finalizesWithEnd(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader("1 2 add printnum"))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := img.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := bytecode.Image(img)[len(img)-2]; got != 2 {
		t.Errorf("expected implicit END (2) before checksum, got %d", got)
	}
}

// A mid-stream "end" is just an opcode emission, not an assembly
// terminator: code after it (only reachable by label/jump) still
// assembles.
func TestAssemble_endDoesNotStopAssembly(t *testing.T) {
	img, err := asm.Assemble(strings.NewReader(`jof ov printnum end label ov "overflow" printstr end`))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if err := img.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !strings.Contains(string(img), "overflow") {
		t.Errorf("expected body to contain the post-end string literal, got % x", []byte(img))
	}
}
