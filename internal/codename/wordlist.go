package codename

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed wordlist_en.txt
var embeddedWordlist []byte

// designation words for journalist-facing labels
var (
	adjectives = []string{
		"amber", "brisk", "calm", "candid", "civic", "clever", "crisp", "daring",
		"eager", "earnest", "fancy", "frank", "gentle", "grand", "hardy", "humble",
		"jolly", "keen", "lucid", "merry", "modest", "nimble", "noble", "plucky",
		"quiet", "rapid", "sober", "steady", "sunny", "tidy", "vivid", "witty",
	}
	nouns = []string{
		"anchor", "badger", "beacon", "bison", "canal", "cedar", "comet", "crane",
		"delta", "falcon", "ferry", "glacier", "harbor", "heron", "lantern", "lynx",
		"maple", "meadow", "otter", "pelican", "quarry", "raven", "river", "saddle",
		"signal", "sparrow", "summit", "thicket", "tundra", "walrus", "willow", "zephyr",
	}
)

// DefaultWords returns the embedded English wordlist.
func DefaultWords() []string {
	words, _ := parseWords(bytes.NewReader(embeddedWordlist))
	return words
}

// LoadWords reads a wordlist file with one word per line. An empty path
// returns the embedded list.
func LoadWords(path string) ([]string, error) {
	if path == "" {
		return DefaultWords(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wordlist: %w", err)
	}
	defer f.Close()

	words, err := parseWords(f)
	if err != nil {
		return nil, fmt.Errorf("read wordlist: %w", err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("wordlist %s is empty", path)
	}
	return words, nil
}

func parseWords(r io.Reader) ([]string, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		words = append(words, w)
	}
	return words, sc.Err()
}
