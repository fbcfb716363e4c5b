// Package tagging generates tags for stored memories from their content and
// metadata.
package tagging

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultMaxTags   = 10
	defaultMinLength = 2

	maxProjectTags = 15
)

// tagCategories are the predefined technical vocabularies. A term matching
// any of them is always a strong tag candidate.
var tagCategories = map[string][]string{
	"languages": {
		"python", "javascript", "typescript", "java", "cpp", "c++", "csharp", "c#",
		"php", "ruby", "go", "golang", "rust", "swift", "kotlin", "scala",
		"html", "css", "sql", "bash", "shell", "powershell", "r", "matlab",
	},
	"frameworks": {
		"react", "vue", "angular", "django", "flask", "fastapi", "express",
		"spring", "laravel", "rails", "nextjs", "nuxt", "gatsby", "svelte",
		"electron", "react-native", "flutter", "ionic", "cordova", "xamarin",
	},
	"tools": {
		"git", "github", "gitlab", "bitbucket", "docker", "kubernetes", "k8s",
		"jenkins", "travis", "circleci", "webpack", "vite", "rollup", "babel",
		"eslint", "prettier", "jest", "cypress", "playwright", "selenium",
		"postman", "insomnia", "vscode", "intellij", "pycharm", "vim", "emacs",
	},
	"databases": {
		"mysql", "postgresql", "postgres", "sqlite", "mongodb", "redis",
		"elasticsearch", "cassandra", "dynamodb", "firebase", "supabase",
	},
	"cloud": {
		"aws", "azure", "gcp", "google-cloud", "heroku", "vercel", "netlify",
		"digitalocean", "linode", "cloudflare", "s3", "ec2", "lambda",
	},
	"concepts": {
		"api", "rest", "graphql", "microservices", "authentication", "authorization",
		"oauth", "jwt", "cors", "websocket", "sse", "crud", "mvc", "mvvm",
		"solid", "dry", "kiss", "yagni", "tdd", "bdd", "ci/cd", "devops",
	},
	"activities": {
		"debugging", "testing", "deployment", "refactoring", "optimization",
		"security", "performance", "monitoring", "logging", "documentation",
		"code-review", "pair-programming", "planning", "design", "architecture",
	},
}

// termVariations maps common shorthand to its canonical tag.
var termVariations = map[string]string{
	"js":       "javascript",
	"ts":       "typescript",
	"py":       "python",
	"cpp":      "c++",
	"cs":       "csharp",
	"rb":       "ruby",
	"k8s":      "kubernetes",
	"postgres": "postgresql",
	"mongo":    "mongodb",
	"aws":      "amazon-web-services",
	"gcp":      "google-cloud-platform",
}

var excludedWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for
		of with by is are was were be been have has had do does did will
		would could should can may might must this that these those
		i you he she it we they me him her us them my your his its our their
		get got getting make making made take taking took give giving gave
		put putting go going went come coming came see seeing saw know
		knowing knew think thinking thought want wanting wanted need needing
		needed use using used work working worked try trying tried help
		helping helped find finding found look looking looked ask asking
		asked tell telling told show showing showed run running ran start
		starting started stop stopping stopped end ending ended create
		creating created build building built add adding added remove
		removing removed delete deleting deleted update updating updated
		change changing changed fix fixing fixed solve solving solved
		handle handling handled`) {
		excludedWords[w] = struct{}{}
	}
}

// commonWords score a penalty: they appear in almost every programming
// conversation.
var commonWords = map[string]struct{}{
	"code": {}, "file": {}, "function": {}, "method": {}, "class": {}, "variable": {},
}

var (
	wordTagRe      = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9_-]*\b`)
	shortWordRe    = regexp.MustCompile(`^[a-z]{1,2}$`)
	fileExtRe      = regexp.MustCompile(`\.([a-zA-Z0-9]+)`)
	domainRe       = regexp.MustCompile(`(?:https?://)?(?:www\.)?([a-zA-Z0-9-]+\.[a-zA-Z]{2,})`)
	versionRe      = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)
	errorNameRe    = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_]*(?:Error|Exception)`)
	httpCodeRe     = regexp.MustCompile(`(?i)(?:HTTP\s+|status\s+code\s+)(\d{3})|(\d{3})\s+error`)
	toolCommandRe  = regexp.MustCompile(`(?m)(?:^|\s)(npm|pip|git|docker|kubectl|yarn|pnpm)\s+([a-zA-Z-]+)`)
	interpreterRe  = regexp.MustCompile(`(?m)(?:^|\s)(python|node|java|javac|gcc|g\+\+)\s+`)
	nonTagCharRe   = regexp.MustCompile(`[^\w-]`)
	dashCollapseRe = regexp.MustCompile(`-+`)
)

var knownFileExts = map[string]struct{}{
	"py": {}, "js": {}, "ts": {}, "html": {}, "css": {}, "java": {}, "cpp": {},
	"c": {}, "h": {}, "cs": {}, "php": {}, "rb": {}, "go": {}, "rs": {},
	"swift": {}, "kt": {},
}

var knownHTTPCodes = map[string]struct{}{
	"400": {}, "401": {}, "403": {}, "404": {}, "500": {},
}

var knownDomains = map[string]struct{}{
	"github.com": {}, "stackoverflow.com": {}, "npmjs.com": {}, "pypi.org": {},
}

var meaningfulDirs = map[string]struct{}{
	"src": {}, "lib": {}, "components": {}, "pages": {}, "views": {}, "models": {},
	"controllers": {}, "services": {}, "utils": {}, "tests": {}, "test": {}, "spec": {},
}

// Tagger generates content tags. Stateless apart from its precompiled term
// patterns; safe for concurrent use.
type Tagger struct {
	maxTags      int
	minTagLength int
	termPatterns map[string]*regexp.Regexp
	logger       *zap.Logger
}

// NewTagger returns a tagger with the default limits.
func NewTagger(logger *zap.Logger) *Tagger {
	if logger == nil {
		logger = zap.NewNop()
	}
	patterns := make(map[string]*regexp.Regexp)
	for _, terms := range tagCategories {
		for _, term := range terms {
			patterns[term] = termPattern(term)
		}
	}
	for alias := range termVariations {
		if _, ok := patterns[alias]; !ok {
			patterns[alias] = termPattern(alias)
		}
	}
	return &Tagger{
		maxTags:      defaultMaxTags,
		minTagLength: defaultMinLength,
		termPatterns: patterns,
		logger:       logger,
	}
}

// termPattern builds a word-bounded matcher where the term allows one. Terms
// ending in symbols ("c++", "c#") anchor only at the front.
func termPattern(term string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(term)
	pattern := `\b` + quoted
	if isWordChar(term[len(term)-1]) {
		pattern += `\b`
	}
	return regexp.MustCompile(pattern)
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// GenerateTags produces up to maxTags tags for one memory, ranked by
// relevance.
func (t *Tagger) GenerateTags(content string, metadata map[string]any) []string {
	all := make(map[string]struct{})
	addAll := func(tags map[string]struct{}) {
		for tag := range tags {
			all[tag] = struct{}{}
		}
	}

	addAll(t.technicalTags(content))
	addAll(t.keywordTags(content))
	addAll(patternTags(content))
	if metadata != nil {
		addAll(metadataTags(metadata))
	}

	ranked := t.rankTags(all, content)
	if len(ranked) > t.maxTags {
		ranked = ranked[:t.maxTags]
	}
	return ranked
}

// SuggestProjectTags aggregates tags across a project's conversations and
// keeps the ones shared by several of them.
func (t *Tagger) SuggestProjectTags(contents []string) []string {
	if len(contents) == 0 {
		return nil
	}

	counts := make(map[string]int)
	for _, content := range contents {
		for _, tag := range t.GenerateTags(content, nil) {
			counts[tag]++
		}
	}

	minFrequency := len(contents) / 3
	if minFrequency < 2 {
		minFrequency = 2
	}

	var common []string
	for tag, count := range counts {
		if count >= minFrequency {
			common = append(common, tag)
		}
	}
	sort.Slice(common, func(i, j int) bool {
		if counts[common[i]] != counts[common[j]] {
			return counts[common[i]] > counts[common[j]]
		}
		return common[i] < common[j]
	})
	if len(common) > maxProjectTags {
		common = common[:maxProjectTags]
	}
	return common
}

var technicalTerms = func() map[string]struct{} {
	terms := make(map[string]struct{})
	for _, categoryTerms := range tagCategories {
		for _, term := range categoryTerms {
			terms[term] = struct{}{}
		}
	}
	return terms
}()

// IsTechnicalTag reports whether the tag belongs to a predefined vocabulary.
func (t *Tagger) IsTechnicalTag(tag string) bool {
	_, ok := technicalTerms[tag]
	return ok
}

func (t *Tagger) technicalTags(content string) map[string]struct{} {
	tags := make(map[string]struct{})
	lower := strings.ToLower(content)
	for _, terms := range tagCategories {
		for _, term := range terms {
			if t.termPatterns[term].MatchString(lower) {
				tags[term] = struct{}{}
			}
		}
	}
	for alias, canonical := range termVariations {
		if t.termPatterns[alias].MatchString(lower) {
			tags[canonical] = struct{}{}
		}
	}
	return tags
}

// keywordTags keeps words that recur in the content and survive the quality
// filters.
func (t *Tagger) keywordTags(content string) map[string]struct{} {
	counts := make(map[string]int)
	for _, word := range wordTagRe.FindAllString(strings.ToLower(content), -1) {
		if len(word) < t.minTagLength {
			continue
		}
		if _, excluded := excludedWords[word]; excluded {
			continue
		}
		counts[word]++
	}

	tags := make(map[string]struct{})
	for word, count := range counts {
		if count < 2 {
			continue
		}
		if strings.HasPrefix(word, "http") || strings.HasPrefix(word, "www") || strings.HasPrefix(word, "com") {
			continue
		}
		if shortWordRe.MatchString(word) {
			continue
		}
		tags[word] = struct{}{}
	}
	return tags
}

func patternTags(content string) map[string]struct{} {
	tags := make(map[string]struct{})

	for _, m := range fileExtRe.FindAllStringSubmatch(content, -1) {
		ext := strings.ToLower(m[1])
		if _, ok := knownFileExts[ext]; ok {
			tags["file-"+ext] = struct{}{}
		}
	}

	for _, m := range domainRe.FindAllStringSubmatch(content, -1) {
		domain := strings.ToLower(m[1])
		if _, ok := knownDomains[domain]; ok {
			tags[strings.SplitN(domain, ".", 2)[0]] = struct{}{}
		}
	}

	if versionRe.MatchString(content) {
		tags["versioning"] = struct{}{}
	}

	for _, m := range errorNameRe.FindAllString(content, -1) {
		name := strings.ToLower(m)
		name = strings.ReplaceAll(name, "exception", "")
		name = strings.ReplaceAll(name, "error", "")
		if name != "" {
			tags["error-"+name] = struct{}{}
		}
	}

	for _, m := range httpCodeRe.FindAllStringSubmatch(content, -1) {
		code := m[1]
		if code == "" {
			code = m[2]
		}
		if _, ok := knownHTTPCodes[code]; ok {
			tags["http-"+code] = struct{}{}
		}
	}

	for _, m := range toolCommandRe.FindAllStringSubmatch(content, -1) {
		tool, command := strings.ToLower(m[1]), strings.ToLower(m[2])
		tags[tool] = struct{}{}
		if len(command) > 1 {
			tags[tool+"-"+command] = struct{}{}
		}
	}
	for _, m := range interpreterRe.FindAllStringSubmatch(content, -1) {
		tags[strings.ToLower(m[1])] = struct{}{}
	}

	return tags
}

func metadataTags(metadata map[string]any) map[string]struct{} {
	tags := make(map[string]struct{})

	if tool, ok := metadata["tool_name"].(string); ok && tool != "" {
		tags[strings.ToLower(tool)] = struct{}{}
	}

	if filePath, ok := metadata["file_path"].(string); ok && filePath != "" {
		if idx := strings.LastIndex(filePath, "."); idx >= 0 {
			ext := strings.ToLower(filePath[idx+1:])
			if len(ext) > 0 && len(ext) <= 4 {
				tags["file-"+ext] = struct{}{}
			}
		}
		for _, part := range strings.Split(filePath, "/") {
			lower := strings.ToLower(part)
			if _, ok := meaningfulDirs[lower]; ok {
				tags["directory-"+lower] = struct{}{}
			}
		}
	}

	if name, ok := metadata["project_name"].(string); ok && name != "" {
		cleaned := nonTagCharRe.ReplaceAllString(strings.ToLower(name), "-")
		cleaned = strings.Trim(dashCollapseRe.ReplaceAllString(cleaned, "-"), "-")
		if cleaned != "" {
			tags["project-"+cleaned] = struct{}{}
		}
	}

	if query, ok := metadata["user_query"].(string); ok && query != "" {
		lower := strings.ToLower(query)
		switch {
		case containsAny(lower, "how to", "how do", "how can"):
			tags["how-to"] = struct{}{}
		case containsAny(lower, "what is", "what are", "what does", "why"):
			tags["explanation"] = struct{}{}
		case containsAny(lower, "error", "bug", "issue", "problem"):
			tags["troubleshooting"] = struct{}{}
		case containsAny(lower, "review", "feedback", "improve"):
			tags["code-review"] = struct{}{}
		}
	}

	return tags
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// rankTags scores each candidate against the content and returns positive
// scorers, best first.
func (t *Tagger) rankTags(candidates map[string]struct{}, content string) []string {
	if len(candidates) == 0 {
		return nil
	}
	lower := strings.ToLower(content)

	scores := make(map[string]int, len(candidates))
	for tag := range candidates {
		score := 0

		plain := strings.NewReplacer("-", " ", "_", " ").Replace(tag)
		score += strings.Count(lower, strings.ToLower(plain))

		if t.IsTechnicalTag(tag) {
			score += 5 + 3
		}
		if _, common := commonWords[tag]; common {
			score -= 2
		}
		if strings.ContainsAny(tag, "-_") {
			score++
		}
		if len(tag) < 3 || len(tag) > 15 {
			score--
		}
		if score < 0 {
			score = 0
		}
		scores[tag] = score
	}

	ranked := make([]string, 0, len(scores))
	for tag, score := range scores {
		if score > 0 {
			ranked = append(ranked, tag)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}
