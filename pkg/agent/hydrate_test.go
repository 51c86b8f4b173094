package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDropCurrentTurn(t *testing.T) {
	c := func(s string) Turn { return Turn{Role: RoleCustomer, Content: s} }
	a := func(s string) Turn { return Turn{Role: RoleAssistant, Content: s} }

	cases := []struct {
		name    string
		history []Turn
		current string
		want    []Turn
	}{
		{
			name:    "single fragment",
			history: []Turn{c("hello"), a("hi!"), c("ok thanks")},
			current: "ok thanks",
			want:    []Turn{c("hello"), a("hi!")},
		},
		{
			name:    "unanswered substring stays",
			history: []Turn{a("hi!"), c("ok"), c("ok thanks")},
			current: "ok thanks",
			want:    []Turn{a("hi!"), c("ok")},
		},
		{
			name:    "all fragments of the turn",
			history: []Turn{a("hi!"), c("hi"), c("when is the next trip?")},
			current: "hi\nwhen is the next trip?",
			want:    []Turn{a("hi!")},
		},
		{
			name:    "history without the turn",
			history: []Turn{c("hello"), a("hi!")},
			current: "new question",
			want:    []Turn{c("hello"), a("hi!")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dropCurrentTurn(tc.history, tc.current))
		})
	}
}
