// internal/instance/parse.go
//
// Instance reference parser.
//
// Context
// -------
// Staff paste either a launch URL or a raw "wrld_…:instance" token.  URLs
// are read from their query (worldId, instanceId) or a world/<id> path
// segment.  Raw tokens are split on the first ':'.  The instance id is then
// cut on '~' and each tail segment is tried against the type/owner, region,
// and nonce patterns in turn; unknown segments are skipped.
package instance

import (
	"net/url"
	"regexp"
	"strings"
)

const uuidPattern = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

var (
	typeRe   = regexp.MustCompile(`^(public|friends\+?|invite\+?|group|groupPlus|groupPublic)(?:\((usr_` + uuidPattern + `)\))?$`)
	regionRe = regexp.MustCompile(`^region\((\w+)\)$`)
	nonceRe  = regexp.MustCompile(`^nonce\(([a-f0-9-]+)\)$`)

	worldPathRe = regexp.MustCompile(`world/(wrld_` + uuidPattern + `)`)

	// tokenRe bounds what a pasted direct token may contain.  Free text
	// with spaces or punctuation is not an instance reference.
	tokenRe = regexp.MustCompile(`^[A-Za-z0-9_~()+:.\-]+$`)
)

// Parse decodes s into a Descriptor.  ok is false when s does not reference
// a world or an instance.  Parse never panics; malformed input of any kind
// is reported as ok == false.
func Parse(s string) (d Descriptor, ok bool) {
	defer func() {
		if recover() != nil {
			d, ok = Descriptor{}, false
		}
	}()

	s = strings.TrimSpace(s)
	if s == "" {
		return Descriptor{}, false
	}

	var worldID, instanceID string
	if isHTTP(s) {
		u, err := url.Parse(s)
		if err != nil {
			return Descriptor{}, false
		}
		q := u.Query()
		worldID = q.Get("worldId")
		if worldID == "" {
			if m := worldPathRe.FindStringSubmatch(u.Path); m != nil {
				worldID = m[1]
			}
		}
		instanceID = q.Get("instanceId")
	} else {
		if !tokenRe.MatchString(s) {
			return Descriptor{}, false
		}
		if strings.HasPrefix(s, "wrld_") {
			worldID, instanceID, _ = strings.Cut(s, ":")
		} else {
			instanceID = s
		}
	}

	if worldID == "" && instanceID == "" {
		return Descriptor{}, false
	}

	d = Descriptor{
		WorldID:         worldID,
		InstanceID:      instanceID,
		InstanceTypeKey: defaultTypeKey,
		RegionKey:       defaultRegionKey,
	}
	if instanceID != "" {
		applySegments(&d, instanceID)
	}

	d.InstanceType = typeLabel(d.InstanceTypeKey)
	d.Region = regionLabel(d.RegionKey)
	if worldID != "" && instanceID != "" {
		d.FullInstance = worldID + ":" + instanceID
	}
	return d, true
}

// applySegments walks the "~" separated tail of an instance id.  Each
// segment is tried against the type, region, and nonce patterns in turn;
// anything else is ignored so new VRChat fields do not break parsing.
func applySegments(d *Descriptor, instanceID string) {
	segs := strings.Split(instanceID, "~")
	d.InstanceNumber = segs[0]

	for _, seg := range segs[1:] {
		if m := typeRe.FindStringSubmatch(seg); m != nil {
			d.InstanceTypeKey = m[1]
			if m[2] != "" {
				d.OwnerID = m[2]
			}
			continue
		}
		if m := regionRe.FindStringSubmatch(seg); m != nil {
			d.RegionKey = m[1]
			continue
		}
		if m := nonceRe.FindStringSubmatch(seg); m != nil {
			d.Nonce = m[1]
		}
	}
}

func isHTTP(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func typeLabel(key string) string {
	if l, ok := typeLabels[key]; ok {
		return l
	}
	return key
}

func regionLabel(key string) string {
	if l, ok := regionLabels[key]; ok {
		return l
	}
	return strings.ToUpper(key)
}
