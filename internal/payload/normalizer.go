package payload

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "ticketera/internal/errors"
)

// maxSyntheticAttendees bounds the attendees built from a bare ticket count.
const maxSyntheticAttendees = 1000

var saleIdentifierKeys = []string{"saleNumber", "saleId", "_id"}

type attendeeRule struct {
	shape   AttendeeShape
	extract func(obj map[string]any) ([]Attendee, bool)
}

// Ordered; the first rule that matches wins.
var attendeeRules = []attendeeRule{
	{ShapeAttendees, attendeeList("attendees")},
	{ShapeEntradas, attendeeList("entradas")},
	{ShapeTicketCount, ticketCount},
}

// Ordered per bucket; the first non-empty source wins.
var (
	foodSources = [][]string{
		{"products"},
		{"alimentosBebestibles"},
		{"food", "items"},
	}
	activitySources = [][]string{
		{"activities"},
		{"activities", "items"},
		{"actividades"},
	}
)

// Normalize parses raw JSON and normalizes it. It is a pure function of raw.
func Normalize(raw []byte) (*RedemptionSession, error) {
	obj, err := DecodeObject(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, "El código QR no es válido o no contiene la información correcta", err)
	}
	return NormalizeMap(obj)
}

// NormalizeMap normalizes an already decoded payload. obj is not modified.
func NormalizeMap(obj map[string]any) (*RedemptionSession, error) {
	if obj == nil {
		return nil, apperrors.New(apperrors.ErrMalformedPayload, "El código QR no es válido o no contiene la información correcta")
	}

	s := &RedemptionSession{
		SaleIdentifier: firstString(obj, saleIdentifierKeys...),
		Event:          parseEvent(obj),
		Attendees:      []Attendee{},
		Shape:          ShapeNone,
	}

	for _, rule := range attendeeRules {
		if attendees, ok := rule.extract(obj); ok {
			s.Attendees = attendees
			s.Shape = rule.shape
			break
		}
	}
	applyAttendance(obj, s.Attendees)

	s.Food = parseBucket(obj, foodSources, CategoryFood)
	s.Activities = parseBucket(obj, activitySources, CategoryActivity)

	if s.SaleIdentifier == "" && !s.HasContent() {
		return nil, apperrors.New(apperrors.ErrMalformedPayload, "QR inválido - No contiene ID de venta válido")
	}
	return s, nil
}

func parseEvent(obj map[string]any) EventInfo {
	info := EventInfo{
		ID:   firstString(obj, "eventoId", "eventId"),
		Date: firstString(obj, "fecha"),
	}

	for _, key := range []string{"event", "evento"} {
		switch v := obj[key].(type) {
		case string:
			if info.Name == "" && v != "" {
				info.Name = v
			}
		case map[string]any:
			if info.ID == "" {
				info.ID = firstString(v, "id", "_id")
			}
			if info.Name == "" {
				info.Name = firstString(v, "nombre", "name", "nombreEvento")
				if general, ok := asObject(v["informacionGeneral"]); ok && info.Name == "" {
					info.Name = firstString(general, "nombreEvento")
				}
			}
			if date := firstString(v, "fecha", "date", "fechaEvento"); date != "" {
				info.Date = date
			}
		}
	}
	return info
}

func attendeeList(key string) func(map[string]any) ([]Attendee, bool) {
	return func(obj map[string]any) ([]Attendee, bool) {
		list, ok := asArray(obj[key])
		if !ok || len(list) == 0 {
			return nil, false
		}

		attendees := make([]Attendee, 0, len(list))
		seen := make(map[int]bool, len(list))
		for pos, v := range list {
			a, ok := parseAttendee(v, pos)
			if !ok || seen[a.Index] {
				continue
			}
			seen[a.Index] = true
			attendees = append(attendees, a)
		}
		return attendees, true
	}
}

func parseAttendee(v any, position int) (Attendee, bool) {
	obj, ok := asObject(v)
	if !ok {
		return Attendee{}, false
	}

	index, ok := firstInt(obj, "index", "attendeeIndex")
	if !ok {
		index = position
	}
	if index < 0 {
		return Attendee{}, false
	}

	name := ""
	if personal, ok := asObject(obj["datosPersonales"]); ok {
		name = firstString(personal, "nombreCompleto", "nombre")
	}
	if name == "" {
		name = firstString(obj, "fullName", "nombreCompleto", "name")
	}
	if name == "" {
		name = syntheticName(index)
	}

	a := Attendee{
		Index:       index,
		FullName:    name,
		TicketType:  firstString(obj, "tipoEntrada", "ticketType"),
		CheckedIn:   toBool(obj["isCheckedIn"]) || toBool(obj["checkedIn"]),
		CheckedInAt: toTime(obj["checkedInAt"]),
	}
	if a.CheckedInAt != nil {
		a.CheckedIn = true
	}
	return a, true
}

func ticketCount(obj map[string]any) ([]Attendee, bool) {
	n, ok := toInt(obj["tickets"])
	if !ok || n <= 0 {
		return nil, false
	}
	if n > maxSyntheticAttendees {
		n = maxSyntheticAttendees
	}

	attendees := make([]Attendee, n)
	for i := range attendees {
		attendees[i] = Attendee{Index: i, FullName: syntheticName(i), TicketType: "General"}
	}
	return attendees, true
}

func syntheticName(index int) string {
	return fmt.Sprintf("Asistente %d", index+1)
}

// applyAttendance marks the indexes listed in attendance.checkedIn.
func applyAttendance(obj map[string]any, attendees []Attendee) {
	list, ok := asArray(lookup(obj, []string{"attendance", "checkedIn"}))
	if !ok {
		return
	}

	for _, v := range list {
		var index int
		var at any
		if entry, isObj := asObject(v); isObj {
			i, ok := firstInt(entry, "attendeeIndex", "index")
			if !ok {
				continue
			}
			index, at = i, entry["checkedInAt"]
		} else if i, ok := toInt(v); ok {
			index = i
		} else {
			continue
		}

		for i := range attendees {
			if attendees[i].Index != index {
				continue
			}
			attendees[i].CheckedIn = true
			if attendees[i].CheckedInAt == nil {
				attendees[i].CheckedInAt = toTime(at)
			}
		}
	}
}

func parseBucket(obj map[string]any, sources [][]string, category Category) []Redeemable {
	items := []Redeemable{}
	for _, path := range sources {
		list, ok := asArray(lookup(obj, path))
		if !ok || len(list) == 0 {
			continue
		}

		seen := make(map[string]bool, len(list))
		for _, v := range list {
			item, ok := parseRedeemable(v, category)
			if !ok || seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			items = append(items, item)
		}
		if len(items) > 0 {
			break
		}
	}
	return items
}

func parseRedeemable(v any, category Category) (Redeemable, bool) {
	obj, ok := asObject(v)
	if !ok {
		return Redeemable{}, false
	}
	id := firstString(obj, "id", "itemId", "_id", "productoId", "actividadId")
	if id == "" {
		return Redeemable{}, false
	}

	label := firstString(obj, "nombre", "nombreActividad", "name", "label")
	if label == "" {
		label = id
	}
	price, _ := firstDecimal(obj, "precio", "price", "unitPrice")

	purchased, hasPurchased := firstInt(obj, "cantidadComprada", "purchasedQuantity")
	redeemed, _ := firstInt(obj, "cantidadCanjeada", "redeemedQuantity")
	available, hasAvailable := firstInt(obj, "cantidadDisponible", "availableQuantity")
	legacy, hasLegacy := firstInt(obj, "cantidad")
	purchased, redeemed, available, legacy = clampMin0(purchased), clampMin0(redeemed), clampMin0(available), clampMin0(legacy)

	switch {
	case hasPurchased:
	case hasLegacy:
		purchased = legacy
	case hasAvailable:
		purchased = addSat(available, redeemed)
	}

	if hasAvailable {
		if available > purchased {
			available = purchased
		}
		redeemed = purchased - available
	} else {
		if redeemed > purchased {
			redeemed = purchased
		}
		available = purchased - redeemed
	}

	subtotal, ok := firstDecimal(obj, "subtotal")
	if !ok {
		subtotal = price.Mul(decimal.NewFromInt(int64(purchased)))
	}

	return Redeemable{
		ID:                id,
		Label:             label,
		Category:          category,
		UnitPrice:         price,
		Subtotal:          subtotal,
		PurchasedQuantity: purchased,
		RedeemedQuantity:  redeemed,
		AvailableQuantity: available,
	}, true
}
