package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlexibleBool - гибкий boolean тип, поддерживающий строки и числа
type FlexibleBool bool

// UnmarshalJSON поддерживает парсинг boolean из строки, числа и boolean
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on", "si", "sí":
		*fb = true
	case "false", "0", "no", "off", "", "null":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool возвращает bool значение
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// FlexibleID - идентификатор, приходящий строкой или числом
type FlexibleID string

// UnmarshalJSON принимает "abc", 123 и null
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid identifier: %s", string(data))
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// FlexibleInt - целое число, приходящее числом или строкой
type FlexibleInt int

// UnmarshalJSON принимает 3, "3" и null
func (n *FlexibleInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	i, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("invalid integer value: %s", string(data))
	}
	*n = FlexibleInt(i)
	return nil
}

func (n FlexibleInt) Int() int {
	return int(n)
}

// Backend contract

// APIResponse - конверт любого ответа бэкенда: {status, message, data}
type APIResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Succeeded - успешный ответ обязан иметь status "success" и непустой data
func (r *APIResponse) Succeeded() bool {
	if r.Status != "success" {
		return false
	}
	data := bytes.TrimSpace(r.Data)
	return len(data) > 0 && !bytes.Equal(data, []byte("null"))
}

// LoginRequest - тело POST /api/users/login
type LoginRequest struct {
	CorreoElectronico string `json:"correoElectronico"`
	Password          string `json:"password"`
}

// LoginData - data ответа логина
type LoginData struct {
	Token        string           `json:"token"`
	Validator    ValidatorProfile `json:"validator"`
	Eventos      []Event          `json:"eventos"`
	Permisos     json.RawMessage  `json:"permisos,omitempty"`
	TotalEventos int              `json:"totalEventos"`
}

// ValidatorProfile - профиль валидатора
type ValidatorProfile struct {
	ID                FlexibleID `json:"id"`
	NombreCompleto    string     `json:"nombreCompleto"`
	CorreoElectronico string     `json:"correoElectronico"`
	Rol               string     `json:"rol,omitempty"`
}

// UnmarshalJSON принимает как id, так и _id
func (v *ValidatorProfile) UnmarshalJSON(data []byte) error {
	type plain ValidatorProfile
	var aux struct {
		plain
		MongoID FlexibleID `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*v = ValidatorProfile(aux.plain)
	if v.ID == "" {
		v.ID = aux.MongoID
	}
	return nil
}

// Event - событие, назначенное валидатору
type Event struct {
	ID                 FlexibleID       `json:"id"`
	InformacionGeneral EventGeneralInfo `json:"informacionGeneral"`
}

// UnmarshalJSON принимает как id, так и _id
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var aux struct {
		plain
		MongoID FlexibleID `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Event(aux.plain)
	if e.ID == "" {
		e.ID = aux.MongoID
	}
	return nil
}

// EventGeneralInfo - блок informacionGeneral события
type EventGeneralInfo struct {
	NombreEvento      string `json:"nombreEvento,omitempty"`
	Descripcion       string `json:"descripcion,omitempty"`
	FechaEvento       string `json:"fechaEvento,omitempty"`
	HoraInicio        string `json:"horaInicio,omitempty"`
	HoraTermino       string `json:"horaTermino,omitempty"`
	LugarEvento       string `json:"lugarEvento,omitempty"`
	Estado            string `json:"estado,omitempty"`
	TipoEvento        string `json:"tipoEvento,omitempty"`
	CapacidadMaxima   int    `json:"capacidadMaxima,omitempty"`
	BannerPromocional string `json:"bannerPromocional,omitempty"`
}

// UserProfile - то, что сохраняется в хранилище сессии после логина
type UserProfile struct {
	Validator    ValidatorProfile `json:"validator"`
	Eventos      []Event          `json:"eventos"`
	Permisos     json.RawMessage  `json:"permisos,omitempty"`
	TotalEventos int              `json:"totalEventos"`
}

// HasEvent проверяет, назначено ли событие валидатору
func (p *UserProfile) HasEvent(eventID string) bool {
	for _, e := range p.Eventos {
		if e.ID.String() == eventID {
			return true
		}
	}
	return false
}

// CheckInRequest - тело POST /api/redemptions/checkin
type CheckInRequest struct {
	SaleNumber      string `json:"saleNumber"`
	AttendeeIndexes []int  `json:"attendeeIndexes"`
}

// CheckedInAttendee - участник, отмеченный сервером
type CheckedInAttendee struct {
	Index       int    `json:"index"`
	CheckedInAt string `json:"checkedInAt,omitempty"`
}

// CheckInResult - data ответа check-in. CheckedInAttendees == nil означает,
// что сервер не сообщил подтвержденное подмножество.
type CheckInResult struct {
	CheckedInAttendees []CheckedInAttendee `json:"checkedInAttendees"`
	TotalCheckedIn     int                 `json:"totalCheckedIn"`
	NewCheckIns        int                 `json:"newCheckIns"`
}

// UnmarshalJSON принимает индекс как "index" или "attendeeIndex", числом или строкой,
// а также голые индексы. Элементы без индекса пропускаются.
func (r *CheckInResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		CheckedInAttendees []json.RawMessage `json:"checkedInAttendees"`
		TotalCheckedIn     FlexibleInt       `json:"totalCheckedIn"`
		NewCheckIns        FlexibleInt       `json:"newCheckIns"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = CheckInResult{
		TotalCheckedIn: raw.TotalCheckedIn.Int(),
		NewCheckIns:    raw.NewCheckIns.Int(),
	}
	if raw.CheckedInAttendees == nil {
		return nil
	}
	r.CheckedInAttendees = make([]CheckedInAttendee, 0, len(raw.CheckedInAttendees))
	for _, elem := range raw.CheckedInAttendees {
		if a, ok := decodeCheckedIn(elem); ok {
			r.CheckedInAttendees = append(r.CheckedInAttendees, a)
		}
	}
	return nil
}

func decodeCheckedIn(data json.RawMessage) (CheckedInAttendee, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return CheckedInAttendee{}, false
	}
	if data[0] != '{' {
		var bare FlexibleInt
		if err := json.Unmarshal(data, &bare); err != nil || bare < 0 {
			return CheckedInAttendee{}, false
		}
		return CheckedInAttendee{Index: bare.Int()}, true
	}

	var obj struct {
		Index         *FlexibleInt    `json:"index"`
		AttendeeIndex *FlexibleInt    `json:"attendeeIndex"`
		CheckedInAt   json.RawMessage `json:"checkedInAt"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return CheckedInAttendee{}, false
	}
	index := obj.Index
	if index == nil {
		index = obj.AttendeeIndex
	}
	if index == nil || index.Int() < 0 {
		return CheckedInAttendee{}, false
	}
	a := CheckedInAttendee{Index: index.Int()}
	_ = json.Unmarshal(obj.CheckedInAt, &a.CheckedInAt)
	return a, true
}

// RedemptionLine - одна позиция погашения
type RedemptionLine struct {
	ItemID   string `json:"itemId" binding:"required"`
	Cantidad int    `json:"cantidad" binding:"required,gt=0"`
}

// RedeemRequest - тело POST /api/redemptions/redeem-products и redeem-activities
type RedeemRequest struct {
	SaleNumber  string           `json:"saleNumber"`
	Redemptions []RedemptionLine `json:"redemptions"`
}

// RedeemResult - data ответа погашения; Redemptions, если есть, подтверждены сервером
type RedeemResult struct {
	Redemptions []RedemptionLine `json:"redemptions,omitempty"`
}

// Local API

// LoginBody - тело POST /api/auth/login
type LoginBody struct {
	Email      string       `json:"email" binding:"required,email"`
	Password   string       `json:"password" binding:"required"`
	RememberMe FlexibleBool `json:"rememberMe,omitempty"`
}

// SelectEventBody - тело PUT /api/events/selected
type SelectEventBody struct {
	EventID string `json:"eventId" binding:"required"`
}

// ScanBody - тело POST /api/validation/scan: сырой текст QR-кода
type ScanBody struct {
	QR string `json:"qr" binding:"required"`
}

// CheckInBody - тело POST /api/validation/checkin
type CheckInBody struct {
	AttendeeIndexes []int `json:"attendeeIndexes" binding:"required,min=1"`
}

// RedeemBody - тело POST /api/validation/{products,activities}/redeem
type RedeemBody struct {
	Redemptions []RedemptionLine `json:"redemptions" binding:"required,min=1,dive"`
}

// ErrorResponse - ответ локального API при ошибке
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}
