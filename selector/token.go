package selector

import (
	"slices"
	"strconv"
	"strings"
)

// TokenType classifies selector tokens.
type TokenType int

const (
	TokenID TokenType = iota
	TokenClass
	TokenTag
	TokenAttr
	TokenChild
	TokenPseudo
	TokenRelation
)

func (t TokenType) String() string {
	switch t {
	case TokenID:
		return "ID"
	case TokenClass:
		return "CLASS"
	case TokenTag:
		return "TAG"
	case TokenAttr:
		return "ATTR"
	case TokenChild:
		return "CHILD"
	case TokenPseudo:
		return "PSEUDO"
	case TokenRelation:
		return "RELATION"
	default:
		return "Invalid(" + strconv.Itoa(int(t)) + ")"
	}
}

// Token is a single lexical unit of selector.
//
// Matches holds captured sub-groups:
//
//	ID, CLASS, TAG - [name]
//	ATTR           - [name, operator, value]
//	CHILD          - [kind ("nth", "first", ...), of ("child" or "of-type"), argument]
//	PSEUDO         - [name, argument]
//	RELATION       - [combinator] (one of " ", ">", "+", "~")
type Token struct {
	Type    TokenType
	Value   string
	Matches []string
	// HasArg is set for pseudo-classes followed by parentheses.
	HasArg bool
}

// Name returns the first captured group.
func (t Token) Name() string {
	if len(t.Matches) == 0 {
		return ""
	}
	return t.Matches[0]
}

// Arg returns argument of PSEUDO token.
func (t Token) Arg() string {
	if t.Type != TokenPseudo || len(t.Matches) < 2 {
		return ""
	}
	return t.Matches[1]
}

func (t Token) isSimple() bool {
	switch t.Type {
	case TokenID, TokenClass, TokenTag, TokenAttr:
		return true
	}
	return false
}

// Group is one comma separated alternative of selector list.
type Group []Token

// String restores textual form of the group.
func (g Group) String() string {
	var sb strings.Builder
	for _, t := range g {
		if t.Type == TokenRelation {
			if t.Value == " " {
				sb.WriteByte(' ')
			} else {
				sb.WriteString(" " + t.Value + " ")
			}
			continue
		}
		sb.WriteString(t.Value)
	}
	return strings.TrimSpace(sb.String())
}

// Last returns last token of the group.
func (g Group) Last() (Token, bool) {
	if len(g) == 0 {
		return Token{}, false
	}
	return g[len(g)-1], true
}

// compounds splits group by relation tokens. Relations are returned
// separately, rels[i] joins compounds[i] and compounds[i+1]. Leading relation
// (relative selectors) produces empty first compound.
func (g Group) compounds() (compounds []Group, rels []string) {
	cur := Group{}
	for _, t := range g {
		if t.Type == TokenRelation {
			compounds = append(compounds, cur)
			rels = append(rels, t.Value)
			cur = Group{}
			continue
		}
		cur = append(cur, t)
	}
	compounds = append(compounds, cur)
	return compounds, rels
}

// reorder returns copy of the group where inside every compound cheap simple
// selectors precede pseudo-classes. Compounds with structural or positional
// tokens keep their order because result depends on it.
func (g Group) reorder(positional func(name string) bool) Group {
	out := make(Group, 0, len(g))
	start := 0
	flush := func(end int) {
		compound := slices.Clone(g[start:end])
		fixed := slices.ContainsFunc(compound, func(t Token) bool {
			return t.Type == TokenChild || (t.Type == TokenPseudo && positional(t.Name()))
		})
		if !fixed {
			slices.SortStableFunc(compound, func(a, b Token) int {
				return rank(a) - rank(b)
			})
		}
		out = append(out, compound...)
	}
	for i, t := range g {
		if t.Type == TokenRelation {
			flush(i)
			out = append(out, t)
			start = i + 1
		}
	}
	flush(len(g))
	return out
}

func rank(t Token) int {
	switch t.Type {
	case TokenID:
		return 0
	case TokenTag:
		return 1
	case TokenClass:
		return 2
	case TokenAttr:
		return 3
	default:
		return 4
	}
}
