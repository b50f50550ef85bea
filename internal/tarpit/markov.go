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

package tarpit

import (
	"math/rand"
	"strings"
)

// markovModel is a simple order-2 word chain, the pure-Go analogue of the
// markovify.Text(corpus, state_size=2) model the original service trains
// at runtime from scraped Wikipedia text. Here the corpus is a static,
// bundled file, so the model is built once at startup and never touches
// the network.
type markovModel struct {
	chain map[[2]string][]string
	starts [][2]string
}

func buildMarkovModel(corpus string) *markovModel {
	words := strings.Fields(corpus)
	m := &markovModel{chain: make(map[[2]string][]string)}
	if len(words) < 3 {
		return m
	}
	for i := 0; i+2 < len(words); i++ {
		key := [2]string{words[i], words[i+1]}
		m.chain[key] = append(m.chain[key], words[i+2])
		if i == 0 || strings.HasSuffix(words[i-1], ".") {
			m.starts = append(m.starts, key)
		}
	}
	if len(m.starts) == 0 {
		for k := range m.chain {
			m.starts = append(m.starts, k)
			break
		}
	}
	return m
}

// sentence generates one synthesised sentence by walking the chain until a
// word ending in sentence punctuation is produced or a word cap is hit.
func (m *markovModel) sentence() string {
	if len(m.starts) == 0 {
		return ""
	}
	key := m.starts[rand.Intn(len(m.starts))]
	words := []string{key[0], key[1]}

	for i := 0; i < 40; i++ {
		next, ok := m.chain[key]
		if !ok || len(next) == 0 {
			break
		}
		word := next[rand.Intn(len(next))]
		words = append(words, word)
		if endsSentence(word) {
			break
		}
		key = [2]string{key[1], word}
	}
	return strings.Join(words, " ")
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "!") || strings.HasSuffix(word, "?")
}
