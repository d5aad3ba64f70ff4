package message_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zllovesuki/plzdm/dispatch"
	"github.com/zllovesuki/plzdm/message"
)

var branded = dispatch.CTA{
	Type:  dispatch.CTATypeWebURL,
	Label: "Powered by PlzDM.me",
	URL:   "https://plzdm.me?ref=powered-by",
}

func newAssembler(t *testing.T) *message.Assembler {
	a, err := message.NewAssembler(message.AssemblerOptions{})
	require.NoError(t, err)
	return a
}

func fieldsOf(t *testing.T, err error) []string {
	var verr *message.ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestAssembleShopScenario(t *testing.T) {
	data, err := newAssembler(t).Assemble(message.Input{
		MainText: "Welcome!",
		Label1:   "Shop",
		Link1:    "https://example.com/shop",
		Label2:   "",
		Link2:    "",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "Welcome!", data.Text)
	assert.Equal(t, []dispatch.CTA{
		{Type: "web_url", Label: "Shop", URL: "https://example.com/shop"},
		branded,
	}, data.CTAs)
}

func TestAssembleUnentitledSuppressesUserCTAs(t *testing.T) {
	data, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label1:   "X",
		Link1:    "https://x.com",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "hi", data.Text)
	assert.Equal(t, []dispatch.CTA{branded}, data.CTAs)
}

func TestAssembleUnentitledIgnoresInvalidUserLinks(t *testing.T) {
	_, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label1:   "X",
		Link1:    "http://192.168.0.1",
	}, false)
	assert.NoError(t, err)
}

func TestAssembleCapsCTAs(t *testing.T) {
	data, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label1:   "One",
		Link1:    "https://one.example.com",
		Label2:   "Two",
		Link2:    "https://two.example.com",
		Label3:   "Three",
		Link3:    "https://three.example.com",
	}, true)
	require.NoError(t, err)
	require.Len(t, data.CTAs, 3)
	for _, c := range data.CTAs {
		assert.NotEqual(t, branded.Label, c.Label)
		assert.NotEmpty(t, c.URL)
	}
}

func TestAssembleDropsIncompletePairs(t *testing.T) {
	data, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label1:   "No link",
		Link2:    "https://nolabel.example.com",
		Label3:   "   ",
		Link3:    "https://blank.example.com",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []dispatch.CTA{branded}, data.CTAs)
}

func TestAssembleRejectsPrivateURLs(t *testing.T) {
	_, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label1:   "Router",
		Link1:    "http://192.168.0.1",
		Label2:   "Local",
		Link2:    "http://127.0.0.1:8080",
		Label3:   "Fine",
		Link3:    "https://example.com",
	}, true)
	assert.ElementsMatch(t, []string{"link_1", "link_2"}, fieldsOf(t, err))
}

func TestAssembleValidatesText(t *testing.T) {
	a := newAssembler(t)

	_, err := a.Assemble(message.Input{MainText: "   "}, true)
	assert.Equal(t, []string{"main_text"}, fieldsOf(t, err))

	_, err = a.Assemble(message.Input{MainText: strings.Repeat("é", 10001)}, true)
	assert.Equal(t, []string{"main_text"}, fieldsOf(t, err))

	data, err := a.Assemble(message.Input{MainText: strings.Repeat("é", 10000)}, true)
	require.NoError(t, err)
	assert.Len(t, []rune(data.Text), 10000)
}

func TestAssembleValidatesLabelLength(t *testing.T) {
	_, err := newAssembler(t).Assemble(message.Input{
		MainText: "hi",
		Label2:   strings.Repeat("a", 37),
		Link2:    "https://example.com",
	}, true)
	assert.Equal(t, []string{"label_2"}, fieldsOf(t, err))
}

func TestAssembleTrimsInput(t *testing.T) {
	data, err := newAssembler(t).Assemble(message.Input{
		MainText: "  hi  ",
		Label1:   " Shop ",
		Link1:    " https://example.com/shop ",
	}, true)
	require.NoError(t, err)
	assert.Equal(t, "hi", data.Text)
	assert.Equal(t, "Shop", data.CTAs[0].Label)
	assert.Equal(t, "https://example.com/shop", data.CTAs[0].URL)
}

func TestNewAssemblerRejectsInvalidBrandedCTA(t *testing.T) {
	_, err := message.NewAssembler(message.AssemblerOptions{
		BrandedCTA: &dispatch.CTA{Label: "Local", URL: "http://10.0.0.1"},
	})
	assert.Error(t, err)

	a, err := message.NewAssembler(message.AssemblerOptions{
		BrandedCTA: &dispatch.CTA{Label: "Made with Acme", URL: "https://acme.example.com"},
	})
	require.NoError(t, err)
	data, err := a.Assemble(message.Input{MainText: "hi"}, false)
	require.NoError(t, err)
	require.Len(t, data.CTAs, 1)
	assert.Equal(t, "web_url", data.CTAs[0].Type)
	assert.Equal(t, "Made with Acme", data.CTAs[0].Label)
}
