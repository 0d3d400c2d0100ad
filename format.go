package packsync

import (
	"strings"

	"github.com/unascribed/FlexVer/go/flexver"
)

// formatStep maps the first protocol version of a release range to the pack format it reads.
type formatStep struct {
	protocol int
	format   int
}

// packFormats is ordered by protocol, ascending.
var packFormats = []formatStep{
	{47, 1},   // 1.8
	{107, 2},  // 1.9
	{315, 3},  // 1.11
	{393, 4},  // 1.13
	{573, 5},  // 1.15
	{751, 6},  // 1.16.2
	{755, 7},  // 1.17
	{757, 8},  // 1.18
	{759, 9},  // 1.19
	{761, 12}, // 1.19.3
	{762, 13}, // 1.19.4
	{763, 15}, // 1.20
	{764, 18}, // 1.20.2
	{765, 22}, // 1.20.3
	{766, 32}, // 1.20.5
	{767, 34}, // 1.21
	{768, 42}, // 1.21.2
	{769, 46}, // 1.21.4
	{770, 55}, // 1.21.5
}

// versionFormats maps game versions to pack formats for servers that only know their
// version string. Ordered ascending.
var versionFormats = []struct {
	version string
	format  int
}{
	{"1.8", 1},
	{"1.9", 2},
	{"1.11", 3},
	{"1.13", 4},
	{"1.15", 5},
	{"1.16.2", 6},
	{"1.17", 7},
	{"1.18", 8},
	{"1.19", 9},
	{"1.19.3", 12},
	{"1.19.4", 13},
	{"1.20", 15},
	{"1.20.2", 18},
	{"1.20.3", 22},
	{"1.20.5", 32},
	{"1.21", 34},
	{"1.21.2", 42},
	{"1.21.4", 46},
	{"1.21.5", 55},
}

// MinProtocol is the first protocol version able to receive server resource packs.
const MinProtocol = 47

// PackFormat returns the highest pack format a client speaking protocol supports.
// Protocols older than the table yield 0; protocols newer than the table yield the newest
// known format.
func PackFormat(protocol int) int {
	for i := len(packFormats) - 1; i >= 0; i-- {
		if protocol >= packFormats[i].protocol {
			return packFormats[i].format
		}
	}
	return 0
}

// NewestPackFormat returns the newest pack format in the table.
func NewestPackFormat() int {
	return packFormats[len(packFormats)-1].format
}

// ServerPackFormat derives the pack format from a server version string such as
// "1.20.4-R0.1-SNAPSHOT" or "1.19.2". Unparseable versions yield 0.
func ServerPackFormat(version string) int {
	version = strings.TrimSpace(version)
	if i := strings.IndexByte(version, '-'); i >= 0 {
		version = version[:i]
	}
	if version == "" || version[0] < '0' || version[0] > '9' {
		return 0
	}

	format := 0
	for _, step := range versionFormats {
		if flexver.Compare(version, step.version) >= 0 {
			format = step.format
		}
	}
	return format
}
