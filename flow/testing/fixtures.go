package testing

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/amp-labs/amp-flow/flow"
)

// ErrNotifyFailed is returned by Document.Notify when FailNotify is set.
var ErrNotifyFailed = errors.New("notification failed")

// ReviewWorkflowYAML declares the document review flow used across tests.
const ReviewWorkflowYAML = `
name: review
attribute: status
states:
  - name: draft
    actions:
      - name: submit
        to: review
        ifAll: [HasTitle, HasBody]
        effects: [Notify]
  - name: review
    actions:
      - name: decide
        toMethod: Decision
      - name: reject
        to: draft
  - name: published
  - name: rejected
actions:
  - name: archive
    from: [draft, review, published, rejected]
    to: archived
`

// Document is a subject fixture with the methods ReviewWorkflowYAML names.
type Document struct {
	*flow.Object

	Title      string
	Body       string
	FailNotify bool
	Notified   []string
}

// NewDocument creates a draft document.
func NewDocument(title, body string) *Document {
	return &Document{
		Object: flow.NewObject(map[string]flow.State{"status": "draft"}),
		Title:  title,
		Body:   body,
	}
}

// HasTitle reports whether the document has a title.
func (d *Document) HasTitle() bool {
	return d.Title != ""
}

// HasBody reports whether the document has a body.
func (d *Document) HasBody(...any) bool {
	return d.Body != ""
}

// Notify records the reviewers passed as arguments.
func (d *Document) Notify(args ...any) error {
	if d.FailNotify {
		return ErrNotifyFailed
	}

	for _, a := range args {
		d.Notified = append(d.Notified, fmt.Sprint(a))
	}

	return nil
}

// Decision computes the review outcome from the first argument.
func (d *Document) Decision(args ...any) flow.State {
	if len(args) > 0 && args[0] == true {
		return "published"
	}

	return "rejected"
}

// ReviewConfig parses ReviewWorkflowYAML.
func ReviewConfig() (*flow.Config, error) {
	return flow.LoadConfigFromBytes([]byte(ReviewWorkflowYAML))
}

// LoadTestConfig loads a config from the testdata directory.
func LoadTestConfig(name string) (*flow.Config, error) {
	return flow.LoadConfig(filepath.Join("testdata", name))
}
