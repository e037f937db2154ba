package device

import (
	"strings"
	"testing"
)

func TestParseSignatures(t *testing.T) {
	sigs, err := ParseSignatures(`
/* block comment mentioning __kernel void fake(int x) */
__kernel void generate(
	global float3 *origins,   // ray origins
	__global uint* list,
	const uint width,
	float3 cameraPos,
	unsigned int flags
) {
}

kernel void noArgs() {}
`)
	if err != nil {
		t.Fatal(err)
	}

	if len(sigs) != 2 {
		t.Fatalf("expected 2 signatures; got %d", len(sigs))
	}

	gen, ok := sigs["generate"]
	if !ok {
		t.Fatal("expected signature for kernel generate")
	}

	specs := []ArgSpec{
		{Index: 0, Name: "origins", Kind: BufferArg, Type: "float3", Size: 16},
		{Index: 1, Name: "list", Kind: BufferArg, Type: "uint", Size: 4},
		{Index: 2, Name: "width", Kind: ScalarArg, Type: "uint", Size: 4},
		{Index: 3, Name: "cameraPos", Kind: ScalarArg, Type: "float3", Size: 16},
		{Index: 4, Name: "flags", Kind: ScalarArg, Type: "uint", Size: 4},
	}
	if len(gen.Args) != len(specs) {
		t.Fatalf("expected %d args; got %d", len(specs), len(gen.Args))
	}
	for index, exp := range specs {
		if gen.Args[index] != exp {
			t.Errorf("[arg %d] expected %+v; got %+v", index, exp, gen.Args[index])
		}
	}

	if len(sigs["noArgs"].Args) != 0 {
		t.Fatalf("expected noArgs to have no arguments; got %v", sigs["noArgs"].Args)
	}
}

func TestParseSignatureErrors(t *testing.T) {
	specs := []struct {
		src    string
		expErr string
	}{
		{`__kernel void a(global float *x) {} __kernel void a(int y) {}`, "duplicate declaration"},
		{`__kernel void a(global float *x, int x) {}`, "duplicate argument"},
		{`__kernel void a(global mystruct *x) {}`, "unsupported type"},
		{`__kernel void a(float *x) {}`, "must be global or constant"},
		{`__kernel void a(global int x) {}`, "requires a pointer"},
		{`__kernel void a(int) {}`, "malformed parameter"},
		{`__kernel a(int x) {}`, "could only parse"},
	}

	for index, spec := range specs {
		_, err := ParseSignatures(spec.src)
		if err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", index, spec.expErr, err)
		}
	}
}

func TestLowerCamel(t *testing.T) {
	specs := map[string]string{
		"RayOrigins":  "rayOrigins",
		"RRMinBounce": "rrMinBounce",
		"FOV":         "fov",
		"Width":       "width",
		"numRays":     "numRays",
	}

	for in, exp := range specs {
		if out := lowerCamel(in); out != exp {
			t.Errorf("expected lowerCamel(%q) to be %q; got %q", in, exp, out)
		}
	}
}
