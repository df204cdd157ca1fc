// Package classify decides the mission and science category of a
// publication candidate, either by asking a reviewer or from fixed tags.
package classify

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/TobiSchelling/kpub/internal/ads"
	"github.com/TobiSchelling/kpub/internal/database"
)

// Decision is the outcome of classifying one candidate.
type Decision struct {
	Mission database.Mission
	Science database.Science
	Skip    bool
}

// Skip leaves a candidate out of the store.
var Skip = Decision{Skip: true}

// Classifier assigns tags to a candidate. status describes where the
// candidate sits in the review, e.g. "Reviewing article 3 out of 12.".
type Classifier interface {
	Classify(doc database.Document, status string) (Decision, error)
}

// Prompter asks a reviewer on a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a Prompter reading answers from in.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Classify shows the candidate and asks for its mission, then, unless it
// is unrelated, for its science category. Any answer other than 1-3 to the
// first question skips the candidate. Running out of input is an error.
func (p *Prompter) Classify(doc database.Document, status string) (Decision, error) {
	if status != "" {
		fmt.Fprintf(p.out, "%s\n\n", status)
	}
	p.display(doc)

	fmt.Fprint(p.out, "=> Kepler [1], K2 [2], unrelated [3], or skip [any key]? ")
	answer, err := p.readAnswer()
	if err != nil {
		return Decision{}, err
	}

	var d Decision
	switch answer {
	case "1":
		d.Mission = database.MissionKepler
	case "2":
		d.Mission = database.MissionK2
	case "3":
		d.Mission = database.MissionUnrelated
	default:
		fmt.Fprintln(p.out, "skipped")
		return Skip, nil
	}
	fmt.Fprintln(p.out, d.Mission)

	if d.Mission == database.MissionUnrelated {
		return d, nil
	}

	fmt.Fprint(p.out, "=> Exoplanets [1] or Astrophysics [2]? ")
	answer, err = p.readAnswer()
	if err != nil {
		return Decision{}, err
	}
	switch answer {
	case "1":
		d.Science = database.ScienceExoplanets
	case "2":
		d.Science = database.ScienceAstrophysics
	}
	fmt.Fprintln(p.out, d.Science)
	return d, nil
}

func (p *Prompter) readAnswer() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (p *Prompter) display(doc database.Document) {
	title := doc.Title()
	fmt.Fprintln(p.out, title)
	fmt.Fprintln(p.out, strings.Repeat("-", len([]rune(title))))
	fmt.Fprintln(p.out, doc.String("abstract"))
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "Authors: %s\n", strings.Join(doc.Strings("author"), ", "))
	fmt.Fprintf(p.out, "Date: %s\n", doc.PubDate())
	fmt.Fprintf(p.out, "Status: %s\n", strings.Join(doc.Properties(), ", "))
	fmt.Fprintf(p.out, "URL: %s\n", ads.URL(doc.Bibcode()))
	fmt.Fprintln(p.out)
}

// Fixed classifies every candidate with the same tags.
type Fixed struct {
	Decision Decision
}

// NewFixed validates the tags and returns a Fixed classifier.
func NewFixed(mission, science string) (*Fixed, error) {
	m, err := database.ParseMission(mission)
	if err != nil {
		return nil, err
	}
	s, err := database.ParseScience(science)
	if err != nil {
		return nil, err
	}
	if m == database.MissionUnrelated {
		s = database.ScienceNone
	}
	return &Fixed{Decision: Decision{Mission: m, Science: s}}, nil
}

// Classify returns the fixed decision.
func (f *Fixed) Classify(database.Document, string) (Decision, error) {
	return f.Decision, nil
}
