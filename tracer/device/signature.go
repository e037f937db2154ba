package device

import (
	"fmt"
	"regexp"
	"strings"
)

// ArgKind distinguishes kernel arguments that bind device buffers from
// arguments that are passed by value.
type ArgKind uint8

const (
	ScalarArg ArgKind = iota
	BufferArg
)

func (k ArgKind) String() string {
	if k == BufferArg {
		return "buffer"
	}
	return "scalar"
}

// ArgSpec describes a single kernel parameter.
type ArgSpec struct {
	Index int
	Name  string
	Kind  ArgKind

	// The (normalized) OpenCL type; for buffers this is the pointee type.
	Type string

	// Size in bytes of a scalar argument or of a single buffer element.
	Size int
}

// Signature is the ordered parameter list of a kernel as declared in the
// program source.
type Signature struct {
	Kernel string
	Args   []ArgSpec
}

// Implements Stringer.
func (s Signature) String() string {
	params := make([]string, len(s.Args))
	for i, arg := range s.Args {
		if arg.Kind == BufferArg {
			params[i] = fmt.Sprintf("global %s* %s", arg.Type, arg.Name)
		} else {
			params[i] = fmt.Sprintf("%s %s", arg.Type, arg.Name)
		}
	}
	return fmt.Sprintf("%s(%s)", s.Kernel, strings.Join(params, ", "))
}

// Lookup an argument by name.
func (s Signature) Arg(name string) (ArgSpec, bool) {
	for _, arg := range s.Args {
		if arg.Name == name {
			return arg, true
		}
	}
	return ArgSpec{}, false
}

var (
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRegex  = regexp.MustCompile(`//[^\n]*`)
	kernelQualRegex   = regexp.MustCompile(`\b(?:__kernel|kernel)\b`)
	kernelDeclRegex   = regexp.MustCompile(`\b(?:__kernel|kernel)\s+(?:__attribute__\s*\(\(.*?\)\)\s*)?void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	identRegex        = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// Sizes of the OpenCL types that may appear in kernel signatures.
var clTypeSizes = map[string]int{
	"char": 1, "uchar": 1,
	"short": 2, "ushort": 2,
	"int": 4, "uint": 4, "float": 4,
	"long": 8, "ulong": 8, "double": 8,
	"int2": 8, "uint2": 8, "float2": 8,
	"int3": 16, "uint3": 16, "float3": 16,
	"int4": 16, "uint4": 16, "float4": 16,
	"uchar4": 4,
}

// Qualifiers that do not affect the binding contract.
var ignoredQualifiers = map[string]bool{
	"const": true, "restrict": true, "__restrict": true, "volatile": true,
}

// ParseSignatures extracts the signature of every kernel declared in an
// OpenCL C program.
func ParseSignatures(source string) (map[string]Signature, error) {
	source = blockCommentRegex.ReplaceAllString(source, " ")
	source = lineCommentRegex.ReplaceAllString(source, " ")

	matches := kernelDeclRegex.FindAllStringSubmatch(source, -1)
	if declared := len(kernelQualRegex.FindAllStringIndex(source, -1)); declared != len(matches) {
		return nil, fmt.Errorf("found %d kernel qualifiers but could only parse %d kernel declarations", declared, len(matches))
	}

	sigs := make(map[string]Signature, len(matches))
	for _, match := range matches {
		name := match[1]
		if _, exists := sigs[name]; exists {
			return nil, fmt.Errorf("kernel %s: duplicate declaration", name)
		}

		sig := Signature{Kernel: name}
		params := strings.TrimSpace(match[2])
		if params != "" && params != "void" {
			for index, param := range strings.Split(params, ",") {
				arg, err := parseArg(index, param)
				if err != nil {
					return nil, fmt.Errorf("kernel %s: %v", name, err)
				}
				if _, dup := sig.Arg(arg.Name); dup {
					return nil, fmt.Errorf("kernel %s: duplicate argument name %q", name, arg.Name)
				}
				sig.Args = append(sig.Args, arg)
			}
		}
		sigs[name] = sig
	}

	return sigs, nil
}

func parseArg(index int, param string) (ArgSpec, error) {
	// Detach pointer markers so "float3*out" and "float3 * out" tokenize alike.
	tokens := strings.Fields(strings.Replace(param, "*", " * ", -1))
	if len(tokens) < 2 {
		return ArgSpec{}, fmt.Errorf("arg %d: malformed parameter %q", index, strings.TrimSpace(param))
	}

	arg := ArgSpec{Index: index, Name: tokens[len(tokens)-1]}
	if !identRegex.MatchString(arg.Name) {
		return ArgSpec{}, fmt.Errorf("arg %d: invalid parameter name %q", index, arg.Name)
	}

	var addrSpace string
	var typeTokens []string
	pointer := false
	for _, tok := range tokens[:len(tokens)-1] {
		switch {
		case tok == "*":
			if pointer {
				return ArgSpec{}, fmt.Errorf("arg %s: multi-level pointers are not supported", arg.Name)
			}
			pointer = true
		case ignoredQualifiers[tok]:
		case strings.TrimPrefix(tok, "__") == "global",
			strings.TrimPrefix(tok, "__") == "constant",
			strings.TrimPrefix(tok, "__") == "local",
			strings.TrimPrefix(tok, "__") == "private":
			addrSpace = strings.TrimPrefix(tok, "__")
		default:
			typeTokens = append(typeTokens, tok)
		}
	}

	arg.Type = normalizeType(typeTokens)
	size, known := clTypeSizes[arg.Type]
	if !known {
		return ArgSpec{}, fmt.Errorf("arg %s: unsupported type %q", arg.Name, strings.Join(typeTokens, " "))
	}
	arg.Size = size

	if pointer {
		if addrSpace != "global" && addrSpace != "constant" {
			return ArgSpec{}, fmt.Errorf("arg %s: pointer arguments must be global or constant", arg.Name)
		}
		arg.Kind = BufferArg
	} else if addrSpace == "global" || addrSpace == "constant" || addrSpace == "local" {
		return ArgSpec{}, fmt.Errorf("arg %s: address space %s requires a pointer", arg.Name, addrSpace)
	}

	return arg, nil
}

// Collapse multi-token C spellings into their OpenCL short form.
func normalizeType(tokens []string) string {
	joined := strings.Join(tokens, " ")
	switch joined {
	case "unsigned int", "unsigned":
		return "uint"
	case "unsigned long":
		return "ulong"
	case "unsigned char":
		return "uchar"
	case "unsigned short":
		return "ushort"
	}
	return joined
}
