package basicmessage

import (
	"errors"
	"strings"
	"time"

	"github.com/findy-network/findy-protocol-engine/std/decorator"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// AriesTime handles the timestamp formats seen in the wild.
type AriesTime struct {
	time.Time
}

// older agents send the timestamp without the T separator
const ISO8601 = "2006-01-02 15:04:05.999999Z"

type Basicmessage struct {
	Type     string            `json:"@type,omitempty"`
	ID       string            `json:"@id,omitempty"`
	Thread   *decorator.Thread `json:"~thread,omitempty"`
	Content  string            `json:"content"`
	SentTime AriesTime         `json:"sent_time"`
}

func validateTimestamp(timeStr string) (t time.Time, err error) {
	acceptedFormats := []string{ISO8601, time.RFC3339}
	for _, fmt := range acceptedFormats {
		if t, err = time.Parse(fmt, timeStr); err == nil {
			break
		}
	}
	return
}

func (at *AriesTime) UnmarshalJSON(b []byte) (err error) {
	defer err2.Return(&err)

	t := try.To1(validateTimestamp(strings.Trim(string(b), "\"")))

	*at = AriesTime{Time: t}
	return
}

// MarshalJSON always writes the ISO8601 form: it is the one every tested
// peer accepts.
func (at AriesTime) MarshalJSON() ([]byte, error) {
	t := at.Time
	if y := t.Year(); y < 0 || y >= 10000 {
		// RFC 3339 years are 4 digits exactly
		return nil, errors.New("year outside of range [0,9999]")
	}

	b := make([]byte, 0, len(ISO8601)+2)
	b = append(b, '"')
	b = t.AppendFormat(b, ISO8601)
	b = append(b, '"')
	return b, nil
}

func (at AriesTime) String() string {
	return at.Time.String()
}
