package movecodec

import "strings"

// Family selects one of the move grammars.
type Family uint8

const (
	Standard Family = iota
	Flipping
	Duck
)

func (f Family) String() string {
	switch f {
	case Standard:
		return "standard"
	case Flipping:
		return "flipping"
	case Duck:
		return "duck"
	default:
		return "unknown"
	}
}

// Encode compresses a move in the given family into 2-4 code points.
func Encode(f Family, move string) (string, error) {
	switch f {
	case Standard:
		return encodeStandard(move)
	case Flipping:
		return encodeFlipping(move)
	case Duck:
		return encodeDuck(move)
	default:
		return "", encErr(move, "unknown codec family")
	}
}

// Decode reverses Encode.
func Decode(f Family, code string) (string, error) {
	switch f {
	case Standard:
		return decodeStandard(code)
	case Flipping:
		return decodeFlipping(code)
	case Duck:
		return decodeDuck(code)
	default:
		return "", encErr(code, "unknown codec family")
	}
}

// EncodeLog encodes a whole move list; the first failing move aborts.
func EncodeLog(f Family, moves []string) ([]string, error) {
	out := make([]string, 0, len(moves))
	for _, m := range moves {
		c, err := Encode(f, m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DecodeLog decodes a persisted move list.
func DecodeLog(f Family, codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		m, err := Decode(f, c)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func validSuffix(b byte) bool {
	return b > ' ' && b < 0x7f && b != '@' && b != ','
}

func code(tok string) (rune, bool) {
	return CodePoint(tok)
}

func encodeStandard(move string) (string, error) {
	if len(move) != 4 && len(move) != 5 {
		return "", encErr(move, "standard move must be 4 or 5 characters")
	}
	from, ok := code(move[0:2])
	if !ok {
		return "", encErr(move, "unknown origin token")
	}
	if !isSquare(move[2:4]) {
		return "", encErr(move, "destination is not a square")
	}
	to, _ := code(move[2:4])

	var b strings.Builder
	b.WriteRune(from)
	b.WriteRune(to)
	if len(move) == 5 {
		if !validSuffix(move[4]) {
			return "", encErr(move, "invalid promotion suffix")
		}
		b.WriteByte(move[4])
	}
	return b.String(), nil
}

func decodeStandard(code string) (string, error) {
	rs := []rune(code)
	if len(rs) != 2 && len(rs) != 3 {
		return "", encErr(code, "standard code must be 2 or 3 code points")
	}
	from, ok := Token(rs[0])
	if !ok {
		return "", encErr(code, "unmapped code point")
	}
	to, ok := Token(rs[1])
	if !ok || !isSquare(to) {
		return "", encErr(code, "unmapped code point")
	}
	if len(rs) == 3 {
		if rs[2] > 0x7f || !validSuffix(byte(rs[2])) {
			return "", encErr(code, "invalid promotion suffix")
		}
		return from + to + string(rs[2]), nil
	}
	return from + to, nil
}

// "+P@e4" is a flipped drop; anything else goes through the standard grammar.
func encodeFlipping(move string) (string, error) {
	if !strings.HasPrefix(move, "+") {
		return encodeStandard(move)
	}
	if len(move) != 5 || move[2] != '@' {
		return "", encErr(move, "flipped drop must look like +X@sq")
	}
	if !isFlipToken(move[0:2]) {
		return "", encErr(move, "unknown flip token")
	}
	if !isSquare(move[3:5]) {
		return "", encErr(move, "destination is not a square")
	}
	piece, _ := code(move[0:2])
	to, _ := code(move[3:5])
	return string([]rune{piece, to, '@'}), nil
}

func decodeFlipping(code string) (string, error) {
	rs := []rune(code)
	if len(rs) == 0 || rs[len(rs)-1] != '@' {
		return decodeStandard(code)
	}
	if len(rs) != 3 {
		return "", encErr(code, "flipped drop code must be 3 code points")
	}
	piece, ok := Token(rs[0])
	if !ok || !isFlipToken(piece) {
		return "", encErr(code, "unmapped code point")
	}
	to, ok := Token(rs[1])
	if !ok || !isSquare(to) {
		return "", encErr(code, "unmapped code point")
	}
	return piece + "@" + to, nil
}

// Duck moves are "e2e4,e4d5" or "e7e8q,e8d5": the second leg starts where the first ends.
func encodeDuck(move string) (string, error) {
	if len(move) != 9 && len(move) != 10 {
		return "", encErr(move, "duck move must be 9 or 10 characters")
	}
	comma := len(move) - 5
	if move[comma] != ',' {
		return "", encErr(move, "duck move needs a ',' separator")
	}
	from, to, legFrom, duck := move[0:2], move[2:4], move[comma+1:comma+3], move[len(move)-2:]
	if !isSquare(from) || !isSquare(to) || !isSquare(duck) {
		return "", encErr(move, "duck move tokens must be squares")
	}
	if legFrom != to {
		return "", encErr(move, "duck leg must start on the destination square")
	}
	f, _ := code(from)
	t, _ := code(to)
	d, _ := code(duck)

	var b strings.Builder
	b.WriteRune(f)
	b.WriteRune(t)
	b.WriteRune(d)
	if len(move) == 10 {
		if !validSuffix(move[4]) {
			return "", encErr(move, "invalid promotion suffix")
		}
		b.WriteByte(move[4])
	}
	return b.String(), nil
}

func decodeDuck(code string) (string, error) {
	rs := []rune(code)
	if len(rs) != 3 && len(rs) != 4 {
		return "", encErr(code, "duck code must be 3 or 4 code points")
	}
	sq := make([]string, 3)
	for i := 0; i < 3; i++ {
		t, ok := Token(rs[i])
		if !ok || !isSquare(t) {
			return "", encErr(code, "unmapped code point")
		}
		sq[i] = t
	}
	promo := ""
	if len(rs) == 4 {
		if rs[3] > 0x7f || !validSuffix(byte(rs[3])) {
			return "", encErr(code, "invalid promotion suffix")
		}
		promo = string(rs[3])
	}
	return sq[0] + sq[1] + promo + "," + sq[1] + sq[2], nil
}
