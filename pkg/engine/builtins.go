package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/tendril/pkg/kernel"
	"github.com/chazu/tendril/pkg/kernel/sdfx"
	"github.com/chazu/tendril/pkg/profile"
	"github.com/chazu/tendril/pkg/scene"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms scene Lisp source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: mesh-surface -> mesh_surface
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a v3.Vec.
type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpSolid wraps a kernel solid so it can be returned from `box`, `union`
// and friends and consumed by `surface`.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string {
	return "(" + s.desc + ")"
}
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

// sexpSurface refers to a surface added to the scene.
type sexpSurface struct {
	handle scene.Handle
	name   string
}

func (s *sexpSurface) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(surface %q %s)", s.name, s.handle.Kind)
}
func (s *sexpSurface) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if _, seen := result.kw[name]; !seen {
				result.order = append(result.order, name)
			}
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value, treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toPositive extracts a strictly positive number.
func toPositive(s zygo.Sexp) (float64, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f <= 0 {
		return 0, fmt.Errorf("expected positive number, got %g", f)
	}
	return f, nil
}

// toBool extracts a boolean from a Sexp.
func toBool(s zygo.Sexp) (bool, error) {
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val, nil
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toVec3 extracts a v3.Vec from a sexpVec3.
func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toSolid extracts a kernel solid from a sexpSolid.
func toSolid(s zygo.Sexp) (kernel.Solid, error) {
	if sol, ok := s.(*sexpSolid); ok {
		return sol.solid, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

// toLayer extracts a non-negative integer layer mask.
func toLayer(s zygo.Sexp) (scene.Filter, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok || v.Val < 0 {
		return 0, fmt.Errorf("expected non-negative integer layer, got %s", s.SexpString(nil))
	}
	return scene.Filter(v.Val), nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toFloatRows converts a list of lists of numbers into a height grid.
func toFloatRows(s zygo.Sexp) ([][]float64, error) {
	rows, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(rows))
	for i, row := range rows {
		cells, err := sexpListToSlice(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = make([]float64, len(cells))
		for j, c := range cells {
			f, err := toFloat64(c)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", i, j, err)
			}
			out[i][j] = f
		}
	}
	return out, nil
}

// toProfileValue converts a Sexp into a value a YAML profile key accepts.
func toProfileValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return v.Val, nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpBool:
		return v.Val, nil
	}
	return nil, fmt.Errorf("expected number or boolean, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder accumulates the Setup while a script runs.
type builder struct {
	setup      *Setup
	k          *sdfx.SdfxKernel
	cells      int
	profileSet bool
	anon       int
}

// surfaceName takes an optional leading name from the positional arguments,
// or invents one.
func (b *builder) surfaceName(kind string, pos []zygo.Sexp) (string, []zygo.Sexp) {
	if len(pos) > 0 {
		if s, ok := pos[0].(*zygo.SexpStr); ok {
			return s.S, pos[1:]
		}
	}
	b.anon++
	return fmt.Sprintf("%s_anon_%d", kind, b.anon), pos
}

// layer reads the optional :layer keyword.
func layer(pa kwArgs) (scene.Filter, error) {
	v, ok := pa.kw["layer"]
	if !ok {
		return 0, nil
	}
	return toLayer(v)
}

// registerBuiltins installs the scene DSL builtins into a zygomys
// environment. The builtins populate b.setup during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: v3.Vec{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box 4 1 4) or (box :size (vec3 4 1 4))
	// -----------------------------------------------------------------------
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var size v3.Vec
		switch {
		case len(pa.positional) == 3:
			dims := make([]float64, 3)
			for i, a := range pa.positional {
				f, err := toPositive(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("box: dimension %d: %w", i, err)
				}
				dims[i] = f
			}
			size = v3.Vec{X: dims[0], Y: dims[1], Z: dims[2]}
		case pa.kw["size"] != nil:
			v, err := toVec3(pa.kw["size"])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box: size: %w", err)
			}
			if v.X <= 0 || v.Y <= 0 || v.Z <= 0 {
				return zygo.SexpNull, fmt.Errorf("box: size must be positive, got %v", v)
			}
			size = v
		default:
			return zygo.SexpNull, fmt.Errorf("box requires three dimensions or :size")
		}

		return &sexpSolid{
			solid: b.k.Box(size.X, size.Y, size.Z),
			desc:  fmt.Sprintf("box %gx%gx%g", size.X, size.Y, size.Z),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere 1.5)
	// -----------------------------------------------------------------------
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		r, err := toPositive(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		return &sexpSolid{solid: b.k.Sphere(r), desc: fmt.Sprintf("sphere %g", r)}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder :height 3 :radius 0.5), standing on Y
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		hv, ok := pa.kw["height"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :height")
		}
		h, err := toPositive(hv)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		rv, ok := pa.kw["radius"]
		if !ok {
			return zygo.SexpNull, fmt.Errorf("cylinder requires :radius")
		}
		r, err := toPositive(rv)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}

		// Kernel cylinders run along Z; scenes are Y-up.
		solid := b.k.Rotate(b.k.Cylinder(h, r, 32), 90, 0, 0)
		return &sexpSolid{solid: solid, desc: fmt.Sprintf("cylinder %gx%g", h, r)}, nil
	})

	// -----------------------------------------------------------------------
	// (union a b ...)
	// -----------------------------------------------------------------------
	env.AddFunction("union", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("union requires at least one solid")
		}
		solids := make([]kernel.Solid, len(args))
		for i, a := range args {
			s, err := toSolid(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("union: argument %d: %w", i, err)
			}
			solids[i] = s
		}
		return &sexpSolid{solid: b.k.UnionAll(solids...), desc: fmt.Sprintf("union of %d", len(solids))}, nil
	})

	// -----------------------------------------------------------------------
	// (difference a b)
	// -----------------------------------------------------------------------
	env.AddFunction("difference", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("difference requires exactly 2 solids, got %d", len(args))
		}
		a, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("difference: first: %w", err)
		}
		c, err := toSolid(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("difference: second: %w", err)
		}
		return &sexpSolid{solid: b.k.Difference(a, c), desc: "difference"}, nil
	})

	// -----------------------------------------------------------------------
	// (translate solid (vec3 0 1 0))
	// -----------------------------------------------------------------------
	env.AddFunction("translate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("translate requires a solid and a vec3")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("translate: offset: %w", err)
		}
		return &sexpSolid{solid: b.k.Translate(s, v.X, v.Y, v.Z), desc: "translated"}, nil
	})

	// -----------------------------------------------------------------------
	// (rotate solid (vec3 0 45 0)), Euler angles in degrees
	// -----------------------------------------------------------------------
	env.AddFunction("rotate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("rotate requires a solid and a vec3")
		}
		s, err := toSolid(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: %w", err)
		}
		v, err := toVec3(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("rotate: angles: %w", err)
		}
		return &sexpSolid{solid: b.k.Rotate(s, v.X, v.Y, v.Z), desc: "rotated"}, nil
	})

	// -----------------------------------------------------------------------
	// (surface "wall" solid :layer 1)
	// -----------------------------------------------------------------------
	env.AddFunction("surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		surfName, rest := b.surfaceName("surface", pa.positional)
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("surface requires a solid")
		}
		s, err := toSolid(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("surface %q: %w", surfName, err)
		}
		field, ok := sdfx.SDF(s)
		if !ok {
			return zygo.SexpNull, fmt.Errorf("surface %q: solid has no distance field", surfName)
		}
		l, err := layer(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("surface %q: layer: %w", surfName, err)
		}
		h, err := b.setup.Scene.AddSolid(surfName, field, l)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("surface: %w", err)
		}
		return &sexpSurface{handle: h, name: surfName}, nil
	})

	// -----------------------------------------------------------------------
	// (mesh-surface "rock" solid :at (vec3 0 0 0) :convex false :cells 48)
	//
	// Registered as "mesh_surface"; the preprocessor rewrites the hyphen.
	// The solid is meshed with marching cubes and added as a triangle mesh.
	// -----------------------------------------------------------------------
	env.AddFunction("mesh_surface", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		surfName, rest := b.surfaceName("mesh", pa.positional)
		if len(rest) != 1 {
			return zygo.SexpNull, fmt.Errorf("mesh-surface requires a solid")
		}
		s, err := toSolid(rest[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-surface %q: %w", surfName, err)
		}

		var offset v3.Vec
		if v, ok := pa.kw["at"]; ok {
			if offset, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh-surface %q: at: %w", surfName, err)
			}
		}
		convex := false
		if v, ok := pa.kw["convex"]; ok {
			if convex, err = toBool(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh-surface %q: convex: %w", surfName, err)
			}
		}
		cells := b.cells
		if v, ok := pa.kw["cells"]; ok {
			f, err := toPositive(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("mesh-surface %q: cells: %w", surfName, err)
			}
			cells = int(f)
		}
		l, err := layer(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-surface %q: layer: %w", surfName, err)
		}

		km, err := sdfx.NewWithCells(cells).ToMesh(s)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-surface %q: %w", surfName, err)
		}
		data, err := scene.MeshFromKernel(km)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-surface %q: %w", surfName, err)
		}
		h, err := b.setup.Scene.AddMesh(surfName, data, offset, convex, l)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("mesh-surface: %w", err)
		}
		return &sexpSurface{handle: h, name: surfName}, nil
	})

	// -----------------------------------------------------------------------
	// (terrain "ground" :height 0)
	// (terrain "hills" :base 0 :amplitude 0.5 :frequency 1)
	// (terrain "steps" :origin (vec3 -2 0 -2) :cell 1 :heights (list (list 0 1) (list 1 2)))
	// -----------------------------------------------------------------------
	env.AddFunction("terrain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		surfName, _ := b.surfaceName("terrain", pa.positional)

		field, err := terrainField(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("terrain %q: %w", surfName, err)
		}
		l, err := layer(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("terrain %q: layer: %w", surfName, err)
		}
		h, err := b.setup.Scene.AddTerrain(surfName, field, l)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("terrain: %w", err)
		}
		return &sexpSurface{handle: h, name: surfName}, nil
	})

	// -----------------------------------------------------------------------
	// (profile :step-distance 0.1 :max-length 6 :mesh-during-growth true)
	//
	// Keyword names are the profile's YAML keys with hyphens.
	// -----------------------------------------------------------------------
	env.AddFunction("profile", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.profileSet {
			return zygo.SexpNull, fmt.Errorf("profile already defined")
		}
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("profile takes only keyword arguments")
		}
		values := make(map[string]any, len(pa.order))
		for _, k := range pa.order {
			v, err := toProfileValue(pa.kw[k])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("profile: %s: %w", k, err)
			}
			values[strings.ReplaceAll(k, "-", "_")] = v
		}
		p, err := profile.FromValues(values)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("profile: %w", err)
		}
		b.setup.Profile = p
		b.profileSet = true
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (seed (vec3 0 0.01 0) :direction (vec3 0 1 0) :adhesion (vec3 0 -1 0))
	// -----------------------------------------------------------------------
	env.AddFunction("seed", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("seed requires a position")
		}
		pos, err := toVec3(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("seed: position: %w", err)
		}
		s := Seed{Position: pos, Direction: v3.Vec{Y: 1}}
		if v, ok := pa.kw["direction"]; ok {
			if s.Direction, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("seed: direction: %w", err)
			}
			if s.Direction.Length() == 0 {
				return zygo.SexpNull, fmt.Errorf("seed: direction must not be zero")
			}
			s.Direction = s.Direction.MulScalar(1 / s.Direction.Length())
		}
		if v, ok := pa.kw["adhesion"]; ok {
			if s.Adhesion, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("seed: adhesion: %w", err)
			}
		}
		b.setup.Seeds = append(b.setup.Seeds, s)
		return &zygo.SexpInt{Val: int64(len(b.setup.Seeds) - 1)}, nil
	})

	// -----------------------------------------------------------------------
	// (paint vine (vec3 0.5 1 0) :normal (vec3 0 0 1) :at 10)
	// -----------------------------------------------------------------------
	env.AddFunction("paint", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 2 {
			return zygo.SexpNull, fmt.Errorf("paint requires a seed and a position")
		}
		seed, err := b.seedRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: %w", err)
		}
		pos, err := toVec3(pa.positional[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: position: %w", err)
		}
		stroke := Paint{Seed: seed, Position: pos, Normal: v3.Vec{Y: 1}}
		if v, ok := pa.kw["normal"]; ok {
			if stroke.Normal, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("paint: normal: %w", err)
			}
			if stroke.Normal.Length() == 0 {
				return zygo.SexpNull, fmt.Errorf("paint: normal must not be zero")
			}
			stroke.Normal = stroke.Normal.MulScalar(1 / stroke.Normal.Length())
		}
		if stroke.Tick, err = tickArg(pa); err != nil {
			return zygo.SexpNull, fmt.Errorf("paint: %w", err)
		}
		b.setup.Paints = append(b.setup.Paints, stroke)
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (force-branch vine :at 20)
	//
	// Registered as "force_branch"; the preprocessor rewrites the hyphen.
	// -----------------------------------------------------------------------
	env.AddFunction("force_branch", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("force-branch requires a seed")
		}
		seed, err := b.seedRef(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("force-branch: %w", err)
		}
		tick, err := tickArg(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("force-branch: %w", err)
		}
		b.setup.Branches = append(b.setup.Branches, ForcedBranch{Seed: seed, Tick: tick})
		return zygo.SexpNull, nil
	})
}

// seedRef resolves a seed index returned by an earlier (seed ...) call.
func (b *builder) seedRef(s zygo.Sexp) (int, error) {
	v, ok := s.(*zygo.SexpInt)
	if !ok {
		return 0, fmt.Errorf("expected seed index, got %s", s.SexpString(nil))
	}
	if v.Val < 0 || v.Val >= int64(len(b.setup.Seeds)) {
		return 0, fmt.Errorf("no seed %d", v.Val)
	}
	return int(v.Val), nil
}

// tickArg reads the optional :at keyword, the tick before which an action runs.
func tickArg(pa kwArgs) (int, error) {
	v, ok := pa.kw["at"]
	if !ok {
		return 0, nil
	}
	n, ok := v.(*zygo.SexpInt)
	if !ok || n.Val < 0 {
		return 0, fmt.Errorf("at: expected non-negative tick, got %s", v.SexpString(nil))
	}
	return int(n.Val), nil
}

// terrainField picks a heightfield from the terrain keywords.
func terrainField(pa kwArgs) (scene.Heightfield, error) {
	num := func(key string, def float64) (float64, error) {
		v, ok := pa.kw[key]
		if !ok {
			return def, nil
		}
		f, err := toFloat64(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return f, nil
	}

	switch {
	case pa.kw["heights"] != nil:
		rows, err := toFloatRows(pa.kw["heights"])
		if err != nil {
			return nil, fmt.Errorf("heights: %w", err)
		}
		var origin v3.Vec
		if v, ok := pa.kw["origin"]; ok {
			if origin, err = toVec3(v); err != nil {
				return nil, fmt.Errorf("origin: %w", err)
			}
		}
		cell, err := num("cell", 1)
		if err != nil {
			return nil, err
		}
		return scene.NewGrid(origin.X, origin.Z, cell, rows)

	case pa.kw["amplitude"] != nil:
		base, err := num("base", 0)
		if err != nil {
			return nil, err
		}
		amp, err := num("amplitude", 0)
		if err != nil {
			return nil, err
		}
		freq, err := num("frequency", 1)
		if err != nil {
			return nil, err
		}
		return scene.Waves{Base: base, Amplitude: amp, Frequency: freq}, nil

	default:
		y, err := num("height", 0)
		if err != nil {
			return nil, err
		}
		return scene.Flat{Y: y}, nil
	}
}
