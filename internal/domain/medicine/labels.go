package medicine

import (
	"archive/zip"
	"bytes"
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultLabelSize = 256
	MinLabelSize     = 64
	MaxLabelSize     = 1024
)

// Labels renders the verification QR codes printed on batch and unit
// labels. Each code holds <base>/verify?contract=<c>&tokenId=<t>.
type Labels struct {
	base string
}

func NewLabels(publicURL string) *Labels {
	return &Labels{base: strings.TrimRight(publicURL, "/")}
}

func (l *Labels) VerifyURL(contract, tokenID string) string {
	q := url.Values{"contract": {contract}, "tokenId": {tokenID}}
	return l.base + "/verify?" + q.Encode()
}

// PNG renders one label. size is clamped to the label size bounds.
func (l *Labels) PNG(contract, tokenID string, size int) ([]byte, error) {
	png, err := qrcode.Encode(l.VerifyURL(contract, tokenID), qrcode.Medium, clampSize(size))
	if err != nil {
		return nil, fmt.Errorf("render qr for %s: %w", tokenID, err)
	}
	return png, nil
}

// Zip renders one qr-codes/<tokenId>.png per unit.
func (l *Labels) Zip(m *Medicine, units []*Unit, size int) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, u := range units {
		png, err := l.PNG(m.ContractAddress, u.TokenID, size)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create("qr-codes/" + u.TokenID + ".png")
		if err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", u.TokenID, err)
		}
		if _, err := w.Write(png); err != nil {
			return nil, fmt.Errorf("add %s to archive: %w", u.TokenID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func clampSize(size int) int {
	switch {
	case size <= 0:
		return DefaultLabelSize
	case size < MinLabelSize:
		return MinLabelSize
	case size > MaxLabelSize:
		return MaxLabelSize
	}
	return size
}
