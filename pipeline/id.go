package pipeline

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
)

// IDKind selects how an IDAssigner generates ids.
type IDKind int

const (
	IDUUID IDKind = iota + 1
	IDULID
	IDExpr
	IDDocHash
	IDRandomHash
)

func (k IDKind) String() string {
	switch k {
	case IDUUID:
		return "uuid"
	case IDULID:
		return "ulid"
	case IDExpr:
		return "expr"
	case IDDocHash:
		return "doc-hash"
	case IDRandomHash:
		return "random-hash"
	}
	return fmt.Sprintf("IDKind(%d)", int(k))
}

// Document hash algorithms.
const (
	HashSHA256  = "sha256"
	HashBlake2b = "blake2b"
)

// IDStrategy is one validated id generation choice. Expr is set only for
// IDExpr and HashAlg only for IDDocHash.
type IDStrategy struct {
	Kind    IDKind
	Expr    string
	HashAlg string
}

// IDSelection mirrors the mutually exclusive command line switches.
type IDSelection struct {
	UUID       bool
	ULID       bool
	Expr       string
	DocHash    bool
	HashAlg    string
	RandomHash bool
}

// NewIDStrategy turns a selection into a strategy. Exactly one switch must
// be set.
func NewIDStrategy(sel IDSelection) (IDStrategy, error) {
	var picked []IDStrategy
	if sel.UUID {
		picked = append(picked, IDStrategy{Kind: IDUUID})
	}
	if sel.ULID {
		picked = append(picked, IDStrategy{Kind: IDULID})
	}
	if sel.Expr != "" {
		picked = append(picked, IDStrategy{Kind: IDExpr, Expr: sel.Expr})
	}
	if sel.DocHash {
		picked = append(picked, IDStrategy{Kind: IDDocHash, HashAlg: sel.HashAlg})
	}
	if sel.RandomHash {
		picked = append(picked, IDStrategy{Kind: IDRandomHash})
	}
	if len(picked) != 1 {
		names := make([]string, len(picked))
		for i, s := range picked {
			names[i] = s.Kind.String()
		}
		return IDStrategy{}, fmt.Errorf("%w: got %d [%s]", ErrIDStrategy, len(picked), strings.Join(names, ", "))
	}
	s := picked[0]
	if err := s.Validate(); err != nil {
		return IDStrategy{}, err
	}
	return s, nil
}

// Validate checks the fields of the selected kind.
func (s IDStrategy) Validate() error {
	switch s.Kind {
	case IDUUID, IDULID, IDRandomHash:
		return nil
	case IDExpr:
		if strings.TrimSpace(s.Expr) == "" {
			return fmt.Errorf("%w: empty expression", ErrInvalidTemplate)
		}
		return nil
	case IDDocHash:
		_, err := newHasher(s.HashAlg)
		return err
	}
	return fmt.Errorf("%w: %s", ErrIDStrategy, s.Kind)
}

func newHasher(alg string) (func() hash.Hash, error) {
	switch strings.ToLower(alg) {
	case "", HashSHA256:
		return sha256.New, nil
	case HashBlake2b:
		return func() hash.Hash {
			h, _ := blake2b.New(64, nil)
			return h
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownHashAlg, alg)
}

// IDAssigner replaces the id of every record.
type IDAssigner struct {
	strategy IDStrategy
	env      *templateEnv
	expr     *Template
	hasher   func() hash.Hash
}

var _ Processor = (*IDAssigner)(nil)

// NewIDAssigner validates s and prepares its generator. ULIDs are monotonic
// for the lifetime of the assigner.
func NewIDAssigner(s IDStrategy, opts ...TemplateOption) (*IDAssigner, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	a := &IDAssigner{strategy: s, env: newTemplateEnv(opts...)}
	switch s.Kind {
	case IDExpr:
		expr, err := a.env.parse(s.Expr)
		if err != nil {
			return nil, err
		}
		a.expr = expr
	case IDDocHash:
		a.hasher, _ = newHasher(s.HashAlg)
	}
	return a, nil
}

func (a *IDAssigner) Process(_ context.Context, rec *core.Record) ([]*core.Record, error) {
	id, err := a.next(rec)
	if err != nil {
		return nil, err
	}
	rec.SetID(id)
	return []*core.Record{rec}, nil
}

func (a *IDAssigner) next(rec *core.Record) (string, error) {
	switch a.strategy.Kind {
	case IDUUID:
		return uuid.New().String(), nil
	case IDULID:
		return a.env.ulids.Next()
	case IDExpr:
		return a.expr.Render(rec)
	case IDDocHash:
		if rec.TextChunk == nil {
			return "", fmt.Errorf("%w: cannot hash record %q", ErrMissingText, rec.IDValue())
		}
		h := a.hasher()
		h.Write([]byte(*rec.TextChunk))
		return hex.EncodeToString(h.Sum(nil)), nil
	default:
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("random id: %w", err)
		}
		sum := sha256.Sum256(buf)
		return hex.EncodeToString(sum[:]), nil
	}
}
