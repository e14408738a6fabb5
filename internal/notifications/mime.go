package notifications

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// BuildMIME writes msg as a multipart/alternative mail with a plain text
// part and, when msg.HTML is set, an HTML part.
func BuildMIME(w io.Writer, fromName, from string, msg EmailMessage) error {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: from}})
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	h.SetMessageID(uuid.NewString() + "@bdt")

	mw, err := mail.CreateInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("create mail writer: %w", err)
	}

	if err := writePart(mw, "text/plain", msg.Text); err != nil {
		return err
	}
	if msg.HTML != "" {
		if err := writePart(mw, "text/html", msg.HTML); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writePart(mw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	ph.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return err
	}
	return pw.Close()
}
