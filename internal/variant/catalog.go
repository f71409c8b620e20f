package variant

import "github.com/park285/Cheese-Tournament/internal/movecodec"

type flag uint8

const (
	shuffle flag = 1 << iota
	bughouse
	retired
)

type entry struct {
	code, id, name, icon string
	flags                flag
	family               movecodec.Family
}

// registration order; append only
var entries = []entry{
	{code: "n", id: "chess", name: "CHESS", icon: "M"},
	{code: "n", id: "chess", name: "CHESS960", icon: "V", flags: shuffle},
	{code: "F", id: "bughouse", name: "BUGHOUSE", icon: "¢", flags: bughouse},
	{code: "F", id: "bughouse", name: "BUGHOUSE960", icon: "⌀", flags: shuffle | bughouse},
	{code: "h", id: "crazyhouse", name: "CRAZYHOUSE", icon: "+"},
	{code: "h", id: "crazyhouse", name: "CRAZYHOUSE960", icon: "%", flags: shuffle},
	{code: "A", id: "atomic", name: "ATOMIC", icon: "~"},
	{code: "A", id: "atomic", name: "ATOMIC960", icon: "\\", flags: shuffle},
	{code: "B", id: "kingofthehill", name: "KING OF THE HILL", icon: "🏴"},
	{code: "B", id: "kingofthehill", name: "KING OF THE HILL960", icon: "🏁", flags: shuffle},
	{code: "X", id: "3check", name: "THREE-CHECK", icon: "☰"},
	{code: "X", id: "3check", name: "THREE-CHECK960", icon: "☷", flags: shuffle},
	{code: "’", id: "antichess", name: "ANTICHESS", icon: "🐥"},
	{code: "’", id: "antichess", name: "ANTICHESS960", icon: "🐓", flags: shuffle},
	{code: "°", id: "racingkings", name: "RACING KINGS", icon: "🚗"},
	{code: "°", id: "racingkings", name: "RACING KINGS1440", icon: "🚙", flags: shuffle},
	{code: "š", id: "horde", name: "HORDE", icon: "🐖"},
	{code: "š", id: "horde", name: "HORDE960", icon: "🐷", flags: shuffle},
	{code: "p", id: "placement", name: "PLACEMENT", icon: "S"},
	{code: "U", id: "duck", name: "DUCK CHESS", icon: "🦆", family: movecodec.Duck},
	{code: "Y", id: "alice", name: "ALICE CHESS", icon: "👧"},
	{code: "Q", id: "fogofwar", name: "FOG OF WAR", icon: "🌫"},

	{code: "m", id: "makruk", name: "MAKRUK", icon: "Q"},
	{code: "l", id: "makpong", name: "MAKPONG", icon: "O"},
	{code: "b", id: "cambodian", name: "OUK CHAKTRANG", icon: "!"},
	{code: "y", id: "sittuyin", name: "SITTUYIN", icon: ":"},
	{code: "S", id: "asean", name: "ASEAN", icon: "♻"},

	{code: "g", id: "shogi", name: "SHOGI", icon: "K"},
	{code: "a", id: "minishogi", name: "MINISHOGI", icon: "6"},
	{code: "k", id: "kyotoshogi", name: "KYOTO SHOGI", icon: ")", family: movecodec.Flipping},
	{code: "D", id: "dobutsu", name: "DOBUTSU", icon: "8"},
	{code: "G", id: "gorogoroplus", name: "GOROGORO+", icon: "🐱"},
	{code: "T", id: "torishogi", name: "TORI SHOGI", icon: "🐦"},
	{code: "W", id: "cannonshogi", name: "CANNON SHOGI", icon: "💣"},

	{code: "x", id: "xiangqi", name: "XIANGQI", icon: "|"},
	{code: "M", id: "manchu", name: "MANCHU+", icon: "{"},
	{code: "j", id: "janggi", name: "JANGGI", icon: "="},
	{code: "e", id: "minixiangqi", name: "MINIXIANGQI", icon: "7"},

	{code: "†", id: "shatranj", name: "SHATRANJ", icon: "🐘"},
	{code: "c", id: "capablanca", name: "CAPABLANCA", icon: "P"},
	{code: "c", id: "capablanca", name: "CAPABLANCA960", icon: ",", flags: shuffle},
	{code: "i", id: "capahouse", name: "CAPAHOUSE", icon: "&"},
	{code: "i", id: "capahouse", name: "CAPAHOUSE960", icon: "'", flags: shuffle},
	{code: "o", id: "gothic", name: "GOTHIC", icon: "P", flags: retired},
	{code: "t", id: "gothhouse", name: "GOTHHOUSE", icon: "&", flags: retired},
	{code: "E", id: "embassy", name: "EMBASSY", icon: "P", flags: retired},
	{code: "R", id: "dragon", name: "DRAGON CHESS", icon: "🐉"},
	{code: "s", id: "seirawan", name: "S-CHESS", icon: "L"},
	{code: "s", id: "seirawan", name: "S-CHESS960", icon: "}", flags: shuffle},
	{code: "z", id: "shouse", name: "S-HOUSE", icon: "$"},
	{code: "q", id: "grand", name: "GRAND", icon: "("},
	{code: "r", id: "grandhouse", name: "GRANDHOUSE", icon: "*"},
	{code: "u", id: "shogun", name: "SHOGUN", icon: "-"},
	{code: "d", id: "shako", name: "SHAKO", icon: "9"},
	{code: "w", id: "hoppelpoppel", name: "HOPPEL-POPPEL", icon: "`"},
	{code: "I", id: "mansindam", name: "MANSINDAM", icon: "⛵"},

	{code: "f", id: "orda", name: "ORDA", icon: "R"},
	{code: "L", id: "khans", name: "KHANS", icon: "🐎"},
	{code: "v", id: "synochess", name: "SYNOCHESS", icon: "_"},
	{code: "J", id: "shinobi", name: "SHINOBI", icon: "🐢", flags: retired},
	{code: "K", id: "shinobiplus", name: "SHINOBI+", icon: "🐢"},
	{code: "P", id: "empire", name: "EMPIRE", icon: "♚"},
	{code: "O", id: "ordamirror", name: "ORDA MIRROR", icon: "◩"},
	{code: "C", id: "chak", name: "CHAK", icon: "🐬"},
	{code: "H", id: "chennis", name: "CHENNIS", icon: "🎾", family: movecodec.Flipping},
	{code: "N", id: "spartan", name: "SPARTAN", icon: "⍺"},

	{code: "Z", id: "ataxx", name: "ATAXX", icon: "☣"},
}

var byoyomiIDs = map[string]bool{
	"shogi": true, "minishogi": true, "kyotoshogi": true, "dobutsu": true,
	"gorogoroplus": true, "torishogi": true, "cannonshogi": true, "janggi": true,
}

// ten-rank boards
var grandIDs = map[string]bool{
	"xiangqi": true, "manchu": true, "grand": true, "grandhouse": true, "shako": true, "janggi": true,
}

var (
	catalog      []Descriptor
	byCode       map[string]Descriptor
	byServerName map[string]Descriptor
)

func init() {
	catalog = make([]Descriptor, 0, len(entries))
	byCode = make(map[string]Descriptor, len(entries))
	byServerName = make(map[string]Descriptor, len(entries))
	for _, e := range entries {
		d := Descriptor{
			Code:        e.code,
			ID:          e.id,
			DisplayName: e.name,
			Icon:        e.icon,
			Shuffle:     e.flags&shuffle != 0,
			Bughouse:    e.flags&bughouse != 0,
			Retired:     e.flags&retired != 0,
			Byoyomi:     byoyomiIDs[e.id],
			Grand:       grandIDs[e.id],
			Family:      e.family,
		}
		if _, dup := byServerName[d.ServerName()]; dup {
			panic("variant: duplicate registration " + d.ServerName())
		}
		if prev, ok := byCode[d.Code]; ok && prev.ID != d.ID {
			panic("variant: short code " + d.Code + " reused by " + d.ID)
		}
		if !d.Shuffle {
			byCode[d.Code] = d
		}
		byServerName[d.ServerName()] = d
		catalog = append(catalog, d)
	}
}
