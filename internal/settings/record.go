package settings

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
)

// Document keys. These are the exact keys of the persisted JSON object.
const (
	KeyServer          = "mqtt_server"
	KeyPort            = "mqtt_port"
	KeyUser            = "mqtt_user"
	KeyPassword        = "mqtt_password"
	KeyPowerStateTopic = "mqtt_power_state_topic"
	KeyPowerSetTopic   = "mqtt_power_set_topic"
	KeySpeedStateTopic = "mqtt_speed_state_topic"
	KeySpeedSetTopic   = "mqtt_speed_set_topic"
	KeyOscStateTopic   = "mqtt_osc_state_topic"
	KeyOscSetTopic     = "mqtt_osc_set_topic"
	KeyDevice          = "mqtt_device"
)

// DefaultBrokerPort is used when the port field is empty.
const DefaultBrokerPort = "1883"

// FieldSpec describes one record field: its document key, portal label and limit.
type FieldSpec struct {
	Key   string
	Label string
	Limit int
	field func(*Record) *Field
}

// Layout lists every field in portal order.
var Layout = []FieldSpec{
	{KeyServer, "MQTT server", 40, func(r *Record) *Field { return &r.Server }},
	{KeyPort, "MQTT port", 6, func(r *Record) *Field { return &r.Port }},
	{KeyUser, "MQTT user", 63, func(r *Record) *Field { return &r.User }},
	{KeyPassword, "MQTT password", 63, func(r *Record) *Field { return &r.Password }},
	{KeyPowerSetTopic, "Power set topic", 63, func(r *Record) *Field { return &r.PowerSetTopic }},
	{KeyPowerStateTopic, "Power state topic", 63, func(r *Record) *Field { return &r.PowerStateTopic }},
	{KeySpeedSetTopic, "Speed set topic", 63, func(r *Record) *Field { return &r.SpeedSetTopic }},
	{KeySpeedStateTopic, "Speed state topic", 63, func(r *Record) *Field { return &r.SpeedStateTopic }},
	{KeyOscSetTopic, "Osc set topic", 63, func(r *Record) *Field { return &r.OscSetTopic }},
	{KeyOscStateTopic, "Osc state topic", 63, func(r *Record) *Field { return &r.OscStateTopic }},
	{KeyDevice, "MQTT device", 63, func(r *Record) *Field { return &r.Device }},
}

// Record is the broker settings record.
//
// A single Record is owned by main and passed by pointer to the components
// that read it. Only the provisioning flow writes to it.
type Record struct {
	Server          Field
	Port            Field
	User            Field
	Password        Field
	PowerStateTopic Field
	PowerSetTopic   Field
	SpeedStateTopic Field
	SpeedSetTopic   Field
	OscStateTopic   Field
	OscSetTopic     Field
	Device          Field
}

// NewRecord returns an empty record with every field limit in place.
func NewRecord() Record {
	var r Record
	for _, s := range Layout {
		*s.field(&r) = Field{limit: s.Limit}
	}
	return r
}

// lookup returns the layout entry for key.
func lookup(key string) (FieldSpec, bool) {
	for _, s := range Layout {
		if s.Key == key {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// Set stores value under key, bounded to the field limit.
func (r *Record) Set(key, value string) (truncated bool, err error) {
	s, ok := lookup(key)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	f, truncated := NewField(value, s.Limit)
	*s.field(r) = f
	return truncated, nil
}

// Get returns the value stored under key ("" for unknown keys).
func (r *Record) Get(key string) string {
	s, ok := lookup(key)
	if !ok {
		return ""
	}
	return s.field(r).String()
}

// Values returns every field keyed by document key.
func (r *Record) Values() map[string]string {
	out := make(map[string]string, len(Layout))
	for _, s := range Layout {
		out[s.Key] = s.field(r).String()
	}
	return out
}

// CopyFrom replaces every field with the value from other.
func (r *Record) CopyFrom(other Record) {
	for _, s := range Layout {
		f, _ := NewField(s.field(&other).String(), s.Limit)
		*s.field(r) = f
	}
}

// Equal reports whether both records hold the same values.
func (r Record) Equal(other Record) bool {
	for _, s := range Layout {
		if s.field(&r).String() != s.field(&other).String() {
			return false
		}
	}
	return true
}

// BrokerAddress returns host:port for the broker, defaulting the port to 1883.
func (r *Record) BrokerAddress() (string, error) {
	if r.Server.Empty() {
		return "", ErrMissingServer
	}
	port := r.Port.String()
	if port == "" {
		port = DefaultBrokerPort
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPort, port)
	}
	return net.JoinHostPort(r.Server.String(), port), nil
}

// LogValue implements slog.LogValuer. The password is never logged.
func (r Record) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(Layout))
	for _, s := range Layout {
		v := s.field(&r).String()
		if s.Key == KeyPassword && v != "" {
			v = "********"
		}
		attrs = append(attrs, slog.String(s.Key, v))
	}
	return slog.GroupValue(attrs...)
}
