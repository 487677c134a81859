package sink

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestDispatcher_CapturesActiveInvocation(t *testing.T) {
	d := NewDispatcher(0)

	_, _ = d.Write([]byte("before\n"))
	d.Begin(nil)
	_, _ = d.Write([]byte("hello\n"))
	out, truncated := d.End()
	_, _ = d.Write([]byte("after\n"))

	if out != "hello\n" {
		t.Errorf("End() output = %q, want %q", out, "hello\n")
	}
	if truncated {
		t.Error("End() truncated = true")
	}

	d.Begin(nil)
	out, _ = d.End()
	if out != "" {
		t.Errorf("second invocation saw %q, want empty", out)
	}
}

func TestDispatcher_Tee(t *testing.T) {
	d := NewDispatcher(0)
	var tee bytes.Buffer

	d.Begin(&tee)
	_, _ = d.Write([]byte("chunk"))
	out, _ := d.End()

	if tee.String() != "chunk" || out != "chunk" {
		t.Errorf("tee = %q, output = %q, want both %q", tee.String(), out, "chunk")
	}
}

func TestDispatcher_Cap(t *testing.T) {
	d := NewDispatcher(8)
	d.Begin(nil)

	n, err := d.Write([]byte("0123456789"))
	if err != nil || n != 10 {
		t.Errorf("Write() = %d, %v; want 10, nil", n, err)
	}
	_, _ = d.Write([]byte("more"))

	out, truncated := d.End()
	if out != "01234567" {
		t.Errorf("output = %q, want %q", out, "01234567")
	}
	if !truncated {
		t.Error("truncated = false, want true")
	}

	d.Begin(nil)
	if _, truncated := d.End(); truncated {
		t.Error("truncation flag carried into the next invocation")
	}
}

func TestExports(t *testing.T) {
	var buf bytes.Buffer
	syms := Exports(&buf)

	for _, name := range []string{"Print", "Println", "Printf", "Emit", "Writer"} {
		if _, ok := syms[name]; !ok {
			t.Errorf("Exports() lacks %s", name)
		}
	}

	syms["Println"].Interface().(func(...any))("a", 1)
	syms["Printf"].Interface().(func(string, ...any))("%03d|", 7)
	syms["Emit"].Interface().(func(string, any))("total", 42)
	w := syms["Writer"].Interface().(func() io.Writer)()
	_, _ = io.WriteString(w, "raw")

	want := "a 1\n007|total=42\nraw"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestPrototype_Discards(t *testing.T) {
	syms := Prototype()
	w := syms["Writer"].Interface().(func() io.Writer)()
	if w != io.Discard {
		t.Error("Prototype writer is not io.Discard")
	}
	if !strings.HasSuffix(Key, "/"+Path) {
		t.Errorf("Key = %q", Key)
	}
}
