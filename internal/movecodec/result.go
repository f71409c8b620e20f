package movecodec

// Result is a game outcome in PGN notation.
type Result string

const (
	WhiteWins    Result = "1-0"
	BlackWins    Result = "0-1"
	Draw         Result = "1/2-1/2"
	Unterminated Result = "*"
)

var (
	resultToCode = map[Result]string{WhiteWins: "a", BlackWins: "b", Draw: "c", Unterminated: "d"}
	codeToResult = map[string]Result{"a": WhiteWins, "b": BlackWins, "c": Draw, "d": Unterminated}
)

// Code returns the single-symbol form stored in pairing records.
func (r Result) Code() (string, error) {
	c, ok := resultToCode[r]
	if !ok {
		return "", encErr(string(r), "unknown result")
	}
	return c, nil
}

// ParseResultCode maps a stored symbol back to a Result.
func ParseResultCode(code string) (Result, error) {
	r, ok := codeToResult[code]
	if !ok {
		return "", encErr(code, "unknown result code")
	}
	return r, nil
}

func (r Result) Terminated() bool { return r == WhiteWins || r == BlackWins || r == Draw }
