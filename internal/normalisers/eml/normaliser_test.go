package eml

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kbase/internal/core/domain"
)

func normalise(t *testing.T, name, message string) string {
	t.Helper()
	result, err := New().Normalise(context.Background(), &domain.RawFile{
		Name:     name,
		MIMEType: "message/rfc822",
		Content:  []byte(strings.ReplaceAll(message, "\n", "\r\n")),
	})
	require.NoError(t, err)
	return result.Title + "|" + result.Text
}

func TestNormaliser_Metadata(t *testing.T) {
	n := New()
	assert.Equal(t, []string{"message/rfc822"}, n.SupportedMIMETypes())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_PlainMessage(t *testing.T) {
	got := normalise(t, "mail.eml", `From: Ada <ada@example.com>
To: team@example.com
Subject: Launch plan
Date: Mon, 3 Mar 2025 09:00:00 +0000

We ship on Friday.
`)

	title, text, _ := strings.Cut(got, "|")
	assert.Equal(t, "Launch plan", title)
	assert.Contains(t, text, "From: Ada <ada@example.com>\n")
	assert.Contains(t, text, "Subject: Launch plan\n")
	assert.True(t, strings.HasSuffix(text, "We ship on Friday."))
}

func TestNormalise_EncodedSubject(t *testing.T) {
	got := normalise(t, "mail.eml", `Subject: =?UTF-8?Q?Caf=C3=A9_menu?=

body
`)
	assert.True(t, strings.HasPrefix(got, "Café menu|"))
}

func TestNormalise_PrefersPlainPart(t *testing.T) {
	got := normalise(t, "mail.eml", `Subject: Alt
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html

<p>rich <b>version</b></p>
--b1
Content-Type: text/plain
Content-Transfer-Encoding: quoted-printable

plain =3D version
--b1--
`)
	assert.Contains(t, got, "plain = version")
	assert.NotContains(t, got, "rich")
}

func TestNormalise_HTMLOnly(t *testing.T) {
	got := normalise(t, "mail.eml", `Subject: News
Content-Type: multipart/mixed; boundary="b2"

--b2
Content-Type: text/html

<p>Hello <b>world</b></p>
--b2
Content-Type: application/pdf
Content-Disposition: attachment; filename="a.pdf"

%PDF-1.4
--b2--
`)
	assert.Contains(t, got, "Hello world")
	assert.NotContains(t, got, "PDF")
}

func TestNormalise_TitleFallsBackToName(t *testing.T) {
	got := normalise(t, "weekly_digest.eml", "From: a@example.com\n\nhi\n")
	assert.True(t, strings.HasPrefix(got, "weekly digest|"))
}

func TestNormalise_Invalid(t *testing.T) {
	_, err := New().Normalise(context.Background(), &domain.RawFile{Content: []byte("no headers here")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = New().Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
