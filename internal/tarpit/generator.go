// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tarpit generates the deceptive HTML pages the Tarpit Responder
// streams to suspected scrapers, plus the obfuscated CSS/JS fragments
// embedded in them. No network scraping is performed: the Markov corpus is
// a static, bundled text file loaded once at startup.
package tarpit

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"
)

const adminHoneyLink = "/admin/login-internal-special-route"

// Generator holds the long-lived, load-once-read-many state the two
// content strategies need: the Markov chain built from the bundled corpus,
// and whether to append the fingerprinting snippet.
type Generator struct {
	markov      *markovModel
	fingerprint bool
	linkPrefix  string
}

// NewGenerator builds a Generator. corpus is the bundled training text;
// an empty corpus falls back to a small built-in one so the Markov
// strategy always has something to chain over.
func NewGenerator(corpus string, fingerprint bool, linkPrefix string) *Generator {
	if strings.TrimSpace(corpus) == "" {
		corpus = fallbackCorpus
	}
	if linkPrefix == "" {
		linkPrefix = "/tarpit"
	}
	return &Generator{
		markov:      buildMarkovModel(corpus),
		fingerprint: fingerprint,
		linkPrefix:  linkPrefix,
	}
}

// GenerateMarkovPage produces 7-15 paragraphs of synthesised sentences plus
// five deceptive internal links whose tokens derive from seed, and the
// honeypot anchor. seed varies the link tokens per request.
func (g *Generator) GenerateMarkovPage(seed string) string {
	paragraphCount := 7 + rand.Intn(9) // 7..15
	var body strings.Builder
	for i := 0; i < paragraphCount; i++ {
		sentence := g.markov.sentence()
		if sentence == "" {
			continue
		}
		fmt.Fprintf(&body, "<p>%s</p>\n", sentence)
	}

	var links strings.Builder
	links.WriteString("<ul>\n")
	for i := 0; i < 5; i++ {
		token := linkToken(seed, i)
		linkText := fmt.Sprintf("Resource %s", token[:4])
		fmt.Fprintf(&links, "    <li><a href=\"%s/page/%s.html\">%s</a></li>\n", g.linkPrefix, token, linkText)
	}
	links.WriteString("</ul>\n")

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Resource Not Found - Documentation</title>
    <meta name="robots" content="noindex, nofollow">
    <style>%s</style>
</head>
<body>
    <h1>Internal Resource Area</h1>
    %s
    <h2>Related Resources:</h2>
    %s
    <div style="margin-top: 50px; visibility: hidden;">
        <a href="%s">Admin Panel</a>
    </div>
    <script>%s</script>
</body>
</html>`, ObfuscatedCSS(), body.String(), links.String(), adminHoneyLink, g.script())
}

// GenerateLabyrinthPage produces a page whose body is depth anchors, each
// linking to "/tarpit/" + sha256(seed||i)[:8]. The per-anchor HTML is
// built from three shared fragments (open/mid/close) so repeated generation
// allocates only the variable token, not the surrounding markup.
func (g *Generator) GenerateLabyrinthPage(seed string, depth int) string {
	if depth <= 0 {
		depth = 5
	}
	tokens := make([]string, depth)
	for i := range tokens {
		tokens[i] = linkToken(seed, i)
	}
	// Shuffle before rendering, matching the original LinkFlyweight's
	// rng.shuffle(links) so anchor order doesn't reveal the seed/index
	// pairing.
	rand.Shuffle(len(tokens), func(i, j int) { tokens[i], tokens[j] = tokens[j], tokens[i] })

	var links strings.Builder
	for _, token := range tokens {
		links.WriteString(labyrinthAnchorOpen)
		links.WriteString(g.linkPrefix)
		links.WriteByte('/')
		links.WriteString(token)
		links.WriteString(labyrinthAnchorMid)
		links.WriteString(token)
		links.WriteString(labyrinthAnchorClose)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <title>Index</title>
    <meta name="robots" content="noindex, nofollow">
    <style>%s</style>
</head>
<body>
    <h1>Directory Listing</h1>
    <ul>
%s    </ul>
    <div style="margin-top: 50px; visibility: hidden;">
        <a href="%s">Admin Panel</a>
    </div>
    <script>%s</script>
</body>
</html>`, ObfuscatedCSS(), links.String(), adminHoneyLink, g.script())
}

const (
	labyrinthAnchorOpen  = "    <li><a href=\""
	labyrinthAnchorMid   = "\">entry-"
	labyrinthAnchorClose = "</a></li>\n"
)

func (g *Generator) script() string {
	if g.fingerprint {
		return ObfuscatedJS() + FingerprintingScript()
	}
	return ObfuscatedJS()
}

// linkToken derives an 8-hex-character token for link index i from seed,
// matching the spec's sha256(seed||i)[:8] construction. The dash separator
// mirrors the original labyrinth generator's f"{seed}-{i}" hash input.
func linkToken(seed string, i int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%d", seed, i)))
	return hex.EncodeToString(sum[:])[:8]
}

// ObfuscatedCSS returns a small stylesheet wrapped as a base64 data-URI
// @import, so a casual reader of the page source sees only an opaque blob.
func ObfuscatedCSS() string {
	css := `body{font-family:monospace;background-color:#eee;color:#111;padding:1em}a{color:#0077cc}`
	encoded := base64.StdEncoding.EncodeToString([]byte(css))
	return fmt.Sprintf(`@import url('data:text/css;base64,%s');`, encoded)
}

// ObfuscatedJS returns a no-op script wrapped as eval(atob(...)), matching
// the obfuscation style of the page's hidden elements.
func ObfuscatedJS() string {
	js := `console.debug("loaded");`
	encoded := base64.StdEncoding.EncodeToString([]byte(js))
	return fmt.Sprintf(`eval(atob('%s'));`, encoded)
}

// FingerprintingScript returns a snippet that harvests coarse client
// fingerprint signals and logs them to the console. It never transmits
// anything: the tarpit only needs the client to execute expensive,
// revealing JS, not exfiltrate the result. Each call draws ten fresh
// 6-letter variable names so the emitted JS never repeats a byte-for-byte
// signature a scraper could fingerprint in turn.
func FingerprintingScript() string {
	names := randomVarNames(10)
	ua, res, depth, lang, plat, tz, cores, plugins, fonts, out := names[0], names[1], names[2], names[3], names[4], names[5], names[6], names[7], names[8], names[9]

	js := fmt.Sprintf(
		`var %s=navigator.userAgent;`+
			`var %s=screen.width+'x'+screen.height;`+
			`var %s=screen.colorDepth;`+
			`var %s=navigator.language||'';`+
			`var %s=navigator.platform||'';`+
			`var %s=new Date().getTimezoneOffset();`+
			`var %s=navigator.hardwareConcurrency||0;`+
			`var %s=[];`+
			`for(var i=0;i<(navigator.plugins||[]).length;i++){%s.push(navigator.plugins[i].name);}`+
			`var %s=[];`+
			`if(document.fonts&&document.fonts.forEach){document.fonts.forEach(function(f){%s.push(f.family);});}`+
			`var %s=[%s,%s,%s,%s,%s,%s,%s,%s.join(','),%s.join(',')];`+
			`console.log('fp',%s);`,
		ua, res, depth, lang, plat, tz, cores, plugins, plugins, fonts, fonts,
		out, ua, res, depth, lang, plat, tz, cores, plugins, fonts, out,
	)
	encoded := base64.StdEncoding.EncodeToString([]byte(js))
	return fmt.Sprintf(`eval(atob('%s'));`, encoded)
}

const varNameAlphabet = "abcdefghijklmnopqrstuvwxyz"

// randomVarNames draws n random 6-letter lowercase identifiers, matching
// the original tarpit's var_names generation.
func randomVarNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		var b strings.Builder
		for j := 0; j < 6; j++ {
			b.WriteByte(varNameAlphabet[rand.Intn(len(varNameAlphabet))])
		}
		names[i] = b.String()
	}
	return names
}

const fallbackCorpus = `Technical documentation often includes setup guides. Installation requires dependencies. Configuration files use YAML syntax. API endpoints follow REST principles. Authentication uses OAuth2 tokens. Databases store user information. Caching improves performance. Logging tracks application events. Monitoring checks system health. Deployment involves Docker containers. Version control uses Git repositories. Continuous integration runs automated tests. Security audits prevent vulnerabilities. Scalability handles increased load. Backup strategies ensure data recovery. Resource allocation balances cost and throughput. Network latency affects user experience. Error handling improves resilience. Schema migrations require careful planning. Indexing strategies optimize query performance.`
