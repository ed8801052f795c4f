/*
Package main implements lmquery, the ARPA n-gram language-model query
tool (spec.md §6 CLI surface). It loads a model file into a configured
wordindex.Index + trie.Store pair and scores m-grams from a query file,
one log10 probability per line, in single or cumulative mode.

lmquery is intentionally a thin driver: argument parsing, logging and
process exit codes live here; everything that scores a query lives in
pkg/query, pkg/arpa, pkg/trie and pkg/wordindex.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/arpalm/arpalm/internal/cli"
	"github.com/arpalm/arpalm/internal/logger"
	"github.com/arpalm/arpalm/pkg/arpa"
	"github.com/arpalm/arpalm/pkg/config"
	"github.com/arpalm/arpalm/pkg/query"
	"github.com/arpalm/arpalm/pkg/trie"
	"github.com/arpalm/arpalm/pkg/wordindex"
)

const (
	Version = "0.1.0"
	AppName = "lmquery"
	gh      = "https://github.com/arpalm/arpalm"
)

func main() {
	os.Exit(run())
}

// run holds all of main's logic so defers (reader/file close) fire
// before the process exits with the computed code; spec.md §6 requires
// 0 on success, 1 on argument or I/O failure.
func run() int {
	showVersion := flag.Bool("version", false, "show current version")
	modelPath := flag.String("m", "", "path to the ARPA model file (required)")
	queryPath := flag.String("q", "", "path to newline-separated m-gram queries (required)")
	cumulative := flag.Bool("c", false, "cumulative (sliding-window) scoring mode")
	debugLevel := flag.String("d", "warning", "debug level: error, warning, usage, result, info, info1..3, debug, debug1..4")
	trieType := flag.String("trie", "", "override configured trie_type")
	wordIdxType := flag.String("index", "", "override configured word_index")
	configPath := flag.String("config", "", "path to a TOML config file (optional; defaults are used otherwise)")
	flag.Parse()

	if *showVersion {
		printVersionBanner()
		return 0
	}

	log.SetDefault(logger.New(AppName))
	log.SetLevel(logger.LevelFromName(*debugLevel))

	if *modelPath == "" || *queryPath == "" {
		fmt.Fprintln(os.Stderr, "usage: lmquery -m <model.arpa> -q <queries.txt> [-c] [-d level]")
		flag.PrintDefaults()
		return 1
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.InitConfig(*configPath)
		if err != nil {
			log.Errorf("config: %v", err)
			return 1
		}
		cfg = loaded
	}
	if *trieType != "" {
		cfg.Model.TrieType = *trieType
	}
	if *wordIdxType != "" {
		cfg.Model.WordIndex = *wordIdxType
	}
	if *cumulative {
		cfg.Query.Cumulative = true
	}
	cfg.Debug.Level = *debugLevel

	n, err := peekOrder(*modelPath)
	if err != nil {
		log.Errorf("model: %v", err)
		return 1
	}
	cfg.Model.MaxLevel = n
	if err := cfg.Validate(); err != nil {
		log.Errorf("config: %v", err)
		return 1
	}

	idx, err := wordindex.New(cfg.Model.WordIndex)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	store, err := trie.New(cfg.Model.TrieType, n, cfg.Model.UseCache)
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}

	if err := loadModel(*modelPath, idx, store, n); err != nil {
		log.Errorf("load: %v", err)
		return 1
	}
	showStartupInfo(*modelPath, n, cfg.Model.TrieType, cfg.Model.WordIndex, idx.Len())

	qf, err := os.Open(*queryPath)
	if err != nil {
		log.Errorf("query file: %v", err)
		return 1
	}
	defer qf.Close()

	eval := query.New(idx, store, n)
	runner := cli.NewRunner(eval, cfg.Query.Cumulative)
	if err := runner.RunFile(qf); err != nil {
		log.Errorf("query: %v", err)
		return 1
	}
	return 0
}

// peekOrder scans the ARPA counts header (spec.md §4.4 step 1) for the
// highest declared "ngram k=<count>" level, so the word index and trie
// can be constructed for the right order before the real, streaming load
// begins. It stops at the first m-grams section marker.
func peekOrder(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	n := 0
	sawData := false
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(sc.Text(), "\r"))
		if line == "" {
			continue
		}
		if line == `\data\` {
			sawData = true
			continue
		}
		if strings.HasPrefix(line, `\`) {
			break // first "\k-grams:" marker: header is done
		}
		if !sawData {
			continue
		}
		if strings.HasPrefix(line, "ngram ") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			parts := strings.SplitN(fields[1], "=", 2)
			if len(parts) != 2 {
				continue
			}
			lvl, err := strconv.Atoi(parts[0])
			if err != nil {
				continue
			}
			if lvl > n {
				n = lvl
			}
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("no ngram counts header found in %s", path)
	}
	if n > trie.MaxN {
		return 0, fmt.Errorf("model order %d exceeds max supported order %d", n, trie.MaxN)
	}
	return n, nil
}

// loadModel drives the ARPA builder to completion over path; see
// arpa.Builder.LoadFromPath for reader selection and the advisory
// load-lock that guards against a concurrent build of the same file.
func loadModel(path string, idx wordindex.Index, store trie.Store, n int) error {
	b := arpa.NewBuilder(idx, store, n)
	return b.LoadFromPath(path)
}

// printVersionBanner mirrors the teacher's -version output almost
// exactly (cmd/wordserve/main.go): same lipgloss styling approach, LM
// facts in place of dictionary-chunk facts.
func printVersionBanner() {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})
	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"}).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[lmquery] Katz back-off n-gram language-model queries")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use --help to see available options")
	l.Print("")
	l.Print("Find out more at", "gh", gh)
}

// showStartupInfo logs a short summary of what was loaded, the LM
// analogue of the teacher's dictionary-chunk startup block.
func showStartupInfo(modelPath string, n int, trieType, wordIdx string, words int) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	log.Infof("model: %s", modelPath)
	log.Infof("order: %d, trie: %s, word_index: %s", n, trieType, wordIdx)
	log.Infof("vocabulary: %d words", words)
	log.SetLevel(currentLevel)
}
