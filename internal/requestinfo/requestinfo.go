//
//  internal/requestinfo/requestinfo.go
//
//  Lightweight types that fingerprint the caller of a staff API request
//  (user-agent, IP + geolocation, and timestamp).  The fingerprint is logged
//  and stored as the detail column of audit rows so moderators can tell
//  which tool or dashboard performed a transition.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup, optional)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	surfer "github.com/avct/uasurfer"
	"github.com/cockroachdb/errors"
	"github.com/oschwald/geoip2-golang"
)

// UA carries the parsed user-agent attributes.
//
// Device will be one of: "Desktop", "Mobile", "Tablet", or "Other".
type UA struct {
	Raw       string
	Browser   string
	Version   string
	OS        string
	OSVersion string
	Device    string
	IsBot     bool
}

// Geo holds IP-based geolocation hints.  Empty when no database is loaded
// or the address has no match.
type Geo struct {
	IP         net.IP
	CountryISO string
	City       string
}

// Info is attached to the request context by Enricher.Middleware.
type Info struct {
	UA        UA
	Geo       Geo
	Timestamp time.Time
}

// Summary renders a one-line fingerprint that fits the audit detail column.
func (i *Info) Summary() string {
	if i == nil {
		return ""
	}
	var b strings.Builder
	if i.Geo.IP != nil {
		b.WriteString("ip=" + i.Geo.IP.String())
	}
	if i.Geo.CountryISO != "" {
		b.WriteString(" country=" + i.Geo.CountryISO)
	}
	if i.UA.Browser != "" {
		fmt.Fprintf(&b, " ua=%s/%s", i.UA.Browser, i.UA.Version)
	}
	if i.UA.Device != "" {
		b.WriteString(" device=" + i.UA.Device)
	}
	if i.UA.IsBot {
		b.WriteString(" bot")
	}
	s := strings.TrimSpace(b.String())
	if len(s) > 255 {
		s = s[:255]
	}
	return s
}

type ctxKey struct{} // unexported, collision-proof

// WithInfo stores info on ctx.
func WithInfo(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

// FromContext returns the pointer previously stored by the middleware.
// It returns nil if the middleware has not run.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(ctxKey{}).(*Info)
	return v
}

// Enricher builds Info values.  A nil geo reader disables geolocation.
type Enricher struct {
	geo *geoip2.Reader
}

// NewEnricher opens the GeoLite2-City database at geoPath.  An empty path
// yields an Enricher without geolocation.
func NewEnricher(geoPath string) (*Enricher, error) {
	if geoPath == "" {
		return &Enricher{}, nil
	}
	r, err := geoip2.Open(geoPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open geoip db %s", geoPath)
	}
	return &Enricher{geo: r}, nil
}

// Close releases the MaxMind handle.
func (e *Enricher) Close() error {
	if e.geo == nil {
		return nil
	}
	return e.geo.Close()
}

func (e *Enricher) lookupGeo(ip net.IP) Geo {
	if e.geo == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := e.geo.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}

// parseUA converts a raw header into a UA struct using uasurfer.
func parseUA(raw string) UA {
	if raw == "" {
		return UA{}
	}
	u := surfer.Parse(raw)

	info := UA{
		Raw:       raw,
		Browser:   strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:   versionToString(u.Browser.Version),
		OS:        strings.TrimPrefix(u.OS.Name.String(), "OS"),
		OSVersion: versionToString(u.OS.Version),
		IsBot:     u.IsBot(),
	}

	switch u.DeviceType {
	case surfer.DeviceComputer:
		info.Device = "Desktop"
	case surfer.DeviceTablet:
		info.Device = "Tablet"
	case surfer.DevicePhone, surfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}
	return info
}

// versionToString renders a semantic version in dotted form while trimming
// trailing zeros, e.g. 17.0.0 → "17", 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionToString(v surfer.Version) string {
	if v.Major == 0 && v.Minor == 0 && v.Patch == 0 {
		return ""
	}
	if v.Patch != 0 {
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
	if v.Minor != 0 {
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(int(v.Major))
}
