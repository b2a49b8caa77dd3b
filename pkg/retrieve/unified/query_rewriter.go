package unified

import (
	"regexp"
	"sort"
	"strings"
)

// enStopwords is a trimmed English stopword list: function words that
// rarely carry retrieval signal on their own.
var enStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "shall": true, "can": true, "need": true,
	"must": true, "i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "its": true, "our": true, "their": true,
	"this": true, "that": true, "these": true, "those": true, "what": true, "which": true,
	"who": true, "whom": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "else": true, "when": true, "where": true, "how": true, "not": true,
	"no": true, "nor": true, "so": true, "too": true, "very": true, "just": true,
	"also": true, "in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "as": true, "into": true,
	"about": true, "between": true, "through": true, "after": true, "before": true,
	"up": true, "down": true, "out": true, "off": true, "over": true, "under": true,
	"again": true,
}

// zhStopwords is a trimmed Chinese stopword list, mirroring enStopwords'
// role for CJK input.
var zhStopwords = map[string]bool{
	"的": true, "了": true, "在": true, "是": true, "我": true, "有": true, "和": true,
	"就": true, "不": true, "人": true, "都": true, "一": true, "一个": true, "上": true,
	"也": true, "很": true, "到": true, "说": true, "要": true, "去": true, "你": true,
	"会": true, "着": true, "没有": true, "看": true, "好": true, "自己": true, "这": true,
	"他": true, "她": true, "它": true, "们": true, "那": true, "些": true, "什么": true,
	"怎么": true, "如何": true, "可以": true, "但是": true, "因为": true, "所以": true,
	"如果": true, "虽然": true, "还是": true, "或者": true, "以及": true, "而且": true,
}

// wordPattern matches runs of word characters or Han ideographs, length
// 2 or more, mirroring the Python rewriter's `[\w一-鿿]{2,}`.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// RewriteResult is the outcome of a query rewrite.
type RewriteResult struct {
	Original  string
	Rewritten string
	Keywords  []string
}

// QueryRewriter is a lightweight, non-LLM query enrichment step: it
// extracts high-frequency content words from recent conversation turns
// and appends them, bracketed, to the original query.
type QueryRewriter struct {
	// MaxContextMessages bounds how many of the most recent messages are
	// scanned for keywords. Default 5.
	MaxContextMessages int

	// MaxKeywords bounds how many keywords are appended. Default 6.
	MaxKeywords int

	// MinWordLength is the minimum token length considered. Default 2.
	MinWordLength int

	extraStopwords map[string]bool
}

// NewQueryRewriter creates a QueryRewriter with spec defaults.
func NewQueryRewriter() *QueryRewriter {
	return &QueryRewriter{MaxContextMessages: 5, MaxKeywords: 6, MinWordLength: 2}
}

func (r *QueryRewriter) maxContextMessages() int {
	if r.MaxContextMessages <= 0 {
		return 5
	}
	return r.MaxContextMessages
}

func (r *QueryRewriter) maxKeywords() int {
	if r.MaxKeywords <= 0 {
		return 6
	}
	return r.MaxKeywords
}

func (r *QueryRewriter) minWordLength() int {
	if r.MinWordLength <= 0 {
		return 2
	}
	return r.MinWordLength
}

func (r *QueryRewriter) isStopword(w string) bool {
	if enStopwords[w] || zhStopwords[w] {
		return true
	}
	return r.extraStopwords[w]
}

// Rewrite extracts keywords from the last MaxContextMessages of
// contextMessages and appends them, bracketed, to query. With no query
// or no context, it returns query unchanged.
func (r *QueryRewriter) Rewrite(query string, contextMessages []Message) RewriteResult {
	if query == "" || len(contextMessages) == 0 {
		return RewriteResult{Original: query, Rewritten: query}
	}

	recent := contextMessages
	if n := r.maxContextMessages(); len(recent) > n {
		recent = recent[len(recent)-n:]
	}

	queryWords := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(query, -1) {
		queryWords[strings.ToLower(w)] = true
	}

	minLen := r.minWordLength()
	freq := make(map[string]int)
	var firstSeen []string
	for _, msg := range recent {
		for _, w := range wordPattern.FindAllString(msg.Content, -1) {
			lower := strings.ToLower(w)
			if len([]rune(lower)) < minLen || r.isStopword(lower) || queryWords[lower] {
				continue
			}
			if _, ok := freq[lower]; !ok {
				firstSeen = append(firstSeen, lower)
			}
			freq[lower]++
		}
	}

	// Stable sort by descending frequency, ties broken by first-seen
	// order (mirrors Python's stable sorted()).
	keywords := append([]string(nil), firstSeen...)
	sort.SliceStable(keywords, func(i, j int) bool { return freq[keywords[i]] > freq[keywords[j]] })
	if max := r.maxKeywords(); len(keywords) > max {
		keywords = keywords[:max]
	}

	if len(keywords) == 0 {
		return RewriteResult{Original: query, Rewritten: query}
	}

	rewritten := query + " [" + strings.Join(keywords, " ") + "]"
	return RewriteResult{Original: query, Rewritten: rewritten, Keywords: keywords}
}
