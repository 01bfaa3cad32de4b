package payload

import (
	"strings"

	apperrors "ticketera/internal/errors"
)

// QRCode is a decoded QR text, before normalization.
type QRCode struct {
	SaleIdentifier string
	EventID        string
	fields         map[string]any
}

// ParseQR decodes scanned QR text. It must be a JSON object carrying a sale or event identifier.
func ParseQR(text string) (*QRCode, error) {
	obj, err := DecodeObject([]byte(strings.TrimSpace(text)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, "El código QR no es válido o no contiene la información correcta", err)
	}

	q := &QRCode{
		SaleIdentifier: firstString(obj, saleIdentifierKeys...),
		EventID:        firstString(obj, "eventoId", "eventId"),
		fields:         obj,
	}
	if q.SaleIdentifier == "" && q.EventID == "" {
		return nil, apperrors.New(apperrors.ErrMalformedPayload, "QR inválido - No contiene ID de venta válido")
	}
	return q, nil
}

// Simple reports whether the QR only identifies the sale and the details must be fetched.
func (q *QRCode) Simple() bool {
	if q.SaleIdentifier == "" {
		return false
	}
	for _, key := range []string{"attendees", "entradas"} {
		if list, ok := asArray(q.fields[key]); ok && len(list) > 0 {
			return false
		}
	}
	return true
}

// Session normalizes the QR on its own.
func (q *QRCode) Session() (*RedemptionSession, error) {
	return NormalizeMap(q.fields)
}

// MergeWith normalizes the QR combined with fetched sale data. Fetched keys win.
func (q *QRCode) MergeWith(fetched map[string]any) (*RedemptionSession, error) {
	s, err := NormalizeMap(Merge(q.fields, fetched))
	if err != nil {
		return nil, err
	}
	if s.SaleIdentifier == "" {
		s.SaleIdentifier = q.SaleIdentifier
	}
	if s.Event.ID == "" {
		s.Event.ID = q.EventID
	}
	return s, nil
}

// Merge returns a shallow union of base and overlay; overlay keys replace base keys.
func Merge(base, overlay map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}
