package movecodec

// squareBase is the code point of "a0". Values below it are reserved.
const squareBase = 34

const (
	files = "abcdefghij"
	ranks = "0123456789"
)

// dropGroups lists the non-square tokens in the order they were introduced.
// Persisted move logs depend on this order: append new groups, never reorder.
var dropGroups = [][]string{
	{"P@", "N@", "B@", "R@", "Q@", "K@", "F@", "G@", "S@", "L@", "A@", "C@", "H@", "E@"},
	// kyotoshogi flip markers
	{"+P", "+L", "+N", "+S"},
	// shinobi
	{"M@", "D@", "J@"},
	// chennis flip markers (P and S already registered)
	{"+F", "+M"},
	// cannonshogi
	{"U@", "I@"},
	// melonvariant
	{"W@"},
}

var (
	tokenToCode map[string]rune
	codeToToken map[rune]string
	orderedToks []string
)

func init() {
	tokenToCode = make(map[string]rune, 160)
	codeToToken = make(map[rune]string, 160)

	next := rune(squareBase)
	add := func(tok string) {
		if _, dup := tokenToCode[tok]; dup {
			panic("movecodec: duplicate token " + tok)
		}
		tokenToCode[tok] = next
		codeToToken[next] = tok
		orderedToks = append(orderedToks, tok)
		next++
	}
	for i := 0; i < len(files); i++ {
		for j := 0; j < len(ranks); j++ {
			add(string([]byte{files[i], ranks[j]}))
		}
	}
	for _, g := range dropGroups {
		for _, tok := range g {
			add(tok)
		}
	}
}

// CodePoint returns the code point registered for a token.
func CodePoint(token string) (rune, bool) {
	c, ok := tokenToCode[token]
	return c, ok
}

// Token returns the token registered for a code point.
func Token(c rune) (string, bool) {
	t, ok := codeToToken[c]
	return t, ok
}

// Tokens returns every registered token in code point order.
func Tokens() []string {
	out := make([]string, len(orderedToks))
	copy(out, orderedToks)
	return out
}

func isSquare(tok string) bool {
	if len(tok) != 2 {
		return false
	}
	return tok[0] >= 'a' && tok[0] <= 'j' && tok[1] >= '0' && tok[1] <= '9'
}

func isFlipToken(tok string) bool {
	_, ok := tokenToCode[tok]
	return ok && len(tok) == 2 && tok[0] == '+'
}
