package vm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Executable identity
// ---------------------------------------------------------------------------

// Identity identifies an executable. Hash is the SHA-256 of the canonical
// CBOR encoding of the executable form, so equal compilations share it.
// Instance is unique per compilation.
type Identity struct {
	Hash     [32]byte
	Instance uuid.UUID
}

// String renders the short form used in logs.
func (id Identity) String() string {
	return hex.EncodeToString(id.Hash[:8]) + "/" + id.Instance.String()
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// codeForm is the canonical, hashable form of a Code.
type codeForm struct {
	Name      string     `cbor:"1,keyasint"`
	Source    string     `cbor:"2,keyasint"`
	Bytecode  []byte     `cbor:"3,keyasint"`
	Constants []constant `cbor:"4,keyasint"`
	Names     []string   `cbor:"5,keyasint"`
	Functions [][]byte   `cbor:"6,keyasint"`
	Regions   []int      `cbor:"7,keyasint"`
	Flags     uint8      `cbor:"8,keyasint"`
	Length    int        `cbor:"9,keyasint"`
	Level     int        `cbor:"10,keyasint"`
}

type constant struct {
	Num *float64 `cbor:"1,keyasint,omitempty"`
	Str *string  `cbor:"2,keyasint,omitempty"`
}

// treeForm is the canonical form of a TreeScript: the regenerated source.
type treeForm struct {
	SourceName string `cbor:"1,keyasint"`
	Source     string `cbor:"2,keyasint"`
	Strict     bool   `cbor:"3,keyasint"`
	Eval       bool   `cbor:"4,keyasint"`
}

func hashForm(v interface{}) [32]byte {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		// The forms contain only strings, numbers and byte slices.
		panic(fmt.Sprintf("vm: encode executable form: %v", err))
	}
	return sha256.Sum256(data)
}

// Identity implements Executable.
func (c *Code) Identity() Identity {
	c.idOnce.Do(func() {
		c.id = Identity{Hash: c.contentHash(), Instance: uuid.New()}
	})
	return c.id
}

func (c *Code) contentHash() [32]byte {
	form := codeForm{
		Name:     c.Name,
		Source:   c.Source,
		Bytecode: c.Bytecode,
		Names:    c.Names,
		Length:   c.Length,
		Level:    c.Level,
	}
	for i, b := range []bool{c.Strict, c.Arrow, c.Accessor, c.Eval, c.Optimized} {
		if b {
			form.Flags |= 1 << i
		}
	}
	for _, k := range c.Constants {
		switch k := k.(type) {
		case Number:
			f := float64(k)
			form.Constants = append(form.Constants, constant{Num: &f})
		case *String:
			s := k.String()
			form.Constants = append(form.Constants, constant{Str: &s})
		}
	}
	for _, fn := range c.Functions {
		h := fn.contentHash()
		form.Functions = append(form.Functions, h[:])
	}
	for _, r := range c.TryRegions {
		form.Regions = append(form.Regions, r.Start, r.End, r.Handler, int(r.Kind), r.StackDepth, r.ScopeDepth, r.Index)
	}
	return hashForm(form)
}
