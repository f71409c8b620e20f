package movecodec

import (
	"errors"
	"testing"
)

func TestCodePointsArePinned(t *testing.T) {
	pinned := map[string]rune{
		"a0": 34, "a9": 43, "b0": 44, "e2": 76, "e4": 78, "j9": 133,
		"P@": 134, "N@": 135, "K@": 139, "E@": 147,
		"+P": 148, "+L": 149, "+N": 150, "+S": 151,
		"M@": 152, "D@": 153, "J@": 154,
		"+F": 155, "+M": 156,
		"U@": 157, "I@": 158,
		"W@": 159,
	}
	for tok, want := range pinned {
		got, ok := CodePoint(tok)
		if !ok || got != want {
			t.Errorf("CodePoint(%q) = %d,%v want %d", tok, got, ok, want)
		}
	}
	if n := len(Tokens()); n != 126 {
		t.Fatalf("expected 126 tokens, got %d", n)
	}
}

func TestEncodeStandardScenario(t *testing.T) {
	c, err := Encode(Standard, "e2e4")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rs := []rune(c)
	if len(rs) != 2 || rs[0] != 76 || rs[1] != 78 {
		t.Fatalf("unexpected code %v", rs)
	}
	m, err := Decode(Standard, c)
	if err != nil || m != "e2e4" {
		t.Fatalf("decode = %q, %v", m, err)
	}
}

func TestEncodeDropScenario(t *testing.T) {
	c, err := Encode(Standard, "P@e4")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rs := []rune(c)
	if len(rs) != 2 || rs[0] != 134 || rs[1] != 78 {
		t.Fatalf("unexpected code %v", rs)
	}
	m, err := Decode(Standard, c)
	if err != nil || m != "P@e4" {
		t.Fatalf("decode = %q, %v", m, err)
	}
}

func TestStandardRoundTripAllTokens(t *testing.T) {
	squares := make([]string, 0, 100)
	for _, tok := range Tokens() {
		if isSquare(tok) {
			squares = append(squares, tok)
		}
	}
	for _, from := range Tokens() {
		if isFlipToken(from) {
			continue
		}
		for _, to := range squares {
			for _, mv := range []string{from + to, from + to + "q", from + to + "+"} {
				c, err := Encode(Standard, mv)
				if err != nil {
					t.Fatalf("encode %q: %v", mv, err)
				}
				back, err := Decode(Standard, c)
				if err != nil || back != mv {
					t.Fatalf("round trip %q -> %q (%v)", mv, back, err)
				}
			}
		}
	}
}

func TestFlippingRoundTrip(t *testing.T) {
	moves := []string{"+P@e4", "+L@a0", "+S@j9", "+F@c3", "+M@d5", "a1a2+", "b2b3", "P@c3"}
	for _, mv := range moves {
		c, err := Encode(Flipping, mv)
		if err != nil {
			t.Fatalf("encode %q: %v", mv, err)
		}
		back, err := Decode(Flipping, c)
		if err != nil || back != mv {
			t.Fatalf("round trip %q -> %q (%v)", mv, back, err)
		}
	}
	c, _ := Encode(Flipping, "+P@e4")
	if rs := []rune(c); len(rs) != 3 || rs[0] != 148 || rs[1] != 78 || rs[2] != '@' {
		t.Fatalf("unexpected flipped code %v", rs)
	}
}

func TestDuckRoundTrip(t *testing.T) {
	moves := []string{"e2e4,e4d5", "e7e8q,e8d7", "a0j9,j9b1", "h7h8n,h8a1"}
	for _, mv := range moves {
		c, err := Encode(Duck, mv)
		if err != nil {
			t.Fatalf("encode %q: %v", mv, err)
		}
		if n := len([]rune(c)); n != 3 && n != 4 {
			t.Fatalf("duck code length %d", n)
		}
		back, err := Decode(Duck, c)
		if err != nil || back != mv {
			t.Fatalf("round trip %q -> %q (%v)", mv, back, err)
		}
	}
}

func TestEncodeRejectsOffGrammar(t *testing.T) {
	cases := []struct {
		f  Family
		mv string
	}{
		{Standard, "e2"},
		{Standard, "k2e4"},
		{Standard, "e2P@"},
		{Standard, "e2e4@"},
		{Flipping, "+X@e4"},
		{Flipping, "+Pe4e"},
		{Duck, "e2e4,d4d5"},
		{Duck, "e2e4;e4d5"},
		{Family(9), "e2e4"},
	}
	for _, tc := range cases {
		_, err := Encode(tc.f, tc.mv)
		if !errors.Is(err, ErrEncoding) {
			t.Errorf("Encode(%v,%q) err = %v, want encoding error", tc.f, tc.mv, err)
		}
		var ee *EncodingError
		if !errors.As(err, &ee) || ee.Input != tc.mv {
			t.Errorf("Encode(%v,%q) not an *EncodingError: %v", tc.f, tc.mv, err)
		}
	}
}

func TestDecodeUnmappedCodePoint(t *testing.T) {
	for _, f := range []Family{Standard, Flipping, Duck} {
		bad := string([]rune{20, 78, 79})
		if _, err := Decode(f, bad); !errors.Is(err, ErrEncoding) {
			t.Errorf("%v: expected encoding error, got %v", f, err)
		}
	}
	if _, err := Decode(Standard, string([]rune{76, 400})); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected error for code point past the table")
	}
}

func TestLogHelpers(t *testing.T) {
	moves := []string{"e2e4", "e7e5", "g1f3"}
	codes, err := EncodeLog(Standard, moves)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeLog(Standard, codes)
	if err != nil {
		t.Fatal(err)
	}
	for i := range moves {
		if back[i] != moves[i] {
			t.Fatalf("move %d: %q != %q", i, back[i], moves[i])
		}
	}
	if _, err := EncodeLog(Standard, []string{"e2e4", "zz"}); err == nil {
		t.Fatal("expected failure on bad move")
	}
}

func TestResultAlphabet(t *testing.T) {
	for r, c := range map[Result]string{WhiteWins: "a", BlackWins: "b", Draw: "c", Unterminated: "d"} {
		got, err := r.Code()
		if err != nil || got != c {
			t.Errorf("%s.Code() = %q, %v", r, got, err)
		}
		back, err := ParseResultCode(c)
		if err != nil || back != r {
			t.Errorf("ParseResultCode(%q) = %q, %v", c, back, err)
		}
	}
	if _, err := ParseResultCode("z"); !errors.Is(err, ErrEncoding) {
		t.Fatalf("expected error for unknown code")
	}
	if Unterminated.Terminated() || !Draw.Terminated() {
		t.Fatal("terminated flags wrong")
	}
}
