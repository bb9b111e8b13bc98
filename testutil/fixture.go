package testutil

import "github.com/hupe1980/ipintel/internal/format"

// Property names of the standard fixture.
const (
	PropCountry           = "Country"
	PropCountryJavaScript = "CountryJavaScript"
	PropRangeStart        = "IpRangeStart"
	PropRangeEnd          = "IpRangeEnd"
	PropLatitude          = "Latitude"
	PropAccuracyRadius    = "AccuracyRadius"
	PropIsEu              = "IsEu"
	PropRegisteredName    = "RegisteredName"
	PropAsnRank           = "AsnRank"
)

// Component ids of the standard fixture.
const (
	LocationComponentID uint8 = 1
	NetworkComponentID  uint8 = 2
)

// Fixture is a small but complete data file:
//
//	8.8.8.0/24      US (profile offset 10) and Google
//	81.0.0.0/8      GB 40000 + DE 25535
//	10.0.0.0/8      GB 32768 + null 32767
//	0.0.0.0/8       Low,  255.0.0.0/8   High
//	2001:4860::/32  US and Google
//	::/8            Low6, ff00::/8      High6
//
// Everything else resolves to the null profile.
type Fixture struct {
	*Builder

	Location, Network int

	Unknown, US, GB, DE, Low, High, Low6, High6, Google *Profile
}

// NewFixture creates the standard fixture.
func NewFixture() *Fixture {
	b := NewBuilder()
	f := &Fixture{Builder: b}

	f.Location = b.Component(LocationComponentID, "Location")
	f.Network = b.Component(NetworkComponentID, "Network")

	country := b.Property(f.Location, PropCountry, format.ValueTypeString, WithCategory("Location"))
	start := b.Property(f.Location, PropRangeStart, format.ValueTypeIPAddress)
	end := b.Property(f.Location, PropRangeEnd, format.ValueTypeIPAddress)
	lat := b.Property(f.Location, PropLatitude, format.ValueTypeDouble, WithDefault("0"))
	radius := b.Property(f.Location, PropAccuracyRadius, format.ValueTypeInteger)
	eu := b.Property(f.Location, PropIsEu, format.ValueTypeBoolean)
	js := b.Property(f.Location, PropCountryJavaScript, format.ValueTypeJavaScript)
	name := b.Property(f.Network, PropRegisteredName, format.ValueTypeString,
		WithDescription("Name of the registered network owner"))
	rank := b.Property(f.Network, PropAsnRank, format.ValueTypeByte)

	location := func(id uint32, c, from, to, latitude, r, isEu string) *Profile {
		return b.Profile(f.Location, id, map[int][]string{
			country: {c}, start: {from}, end: {to}, lat: {latitude}, radius: {r}, eu: {isEu},
			js: {"country='" + c + "';"},
		})
	}

	// A profile without values is ten bytes, which puts US at offset 10.
	f.Unknown = b.Profile(f.Location, 0, nil)
	f.US = location(1001, "US", "8.8.8.0", "8.8.8.255", "37.751", "1000", "False")
	f.GB = location(1002, "GB", "81.0.0.0", "81.255.255.255", "51.4964", "200", "False")
	f.DE = location(1003, "DE", "81.0.0.0", "81.255.255.255", "51.2993", "n/a", "True")
	f.Low = location(1004, "ZZ", "0.0.0.0", "0.255.255.255", "0", "0", "False")
	f.High = location(1005, "ZZ", "255.0.0.0", "255.255.255.255", "0", "0", "False")
	f.Low6 = location(1006, "ZZ", "::", "ff:ffff:ffff:ffff:ffff:ffff:ffff:ffff", "0", "0", "False")
	f.High6 = location(1007, "ZZ", "ff00::", "ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff", "0", "0", "False")
	f.Google = b.Profile(f.Network, 2001, map[int][]string{name: {"Google LLC"}, rank: {"7"}})
	b.SetDefaultProfile(f.Location, f.Unknown)

	b.Graph(4, f.Location, Null()).
		Range("8.8.8.0/24", Single(f.US)).
		Range("81.0.0.0/8", Group(GroupMember{f.GB, 40000}, GroupMember{f.DE, 25535})).
		Range("10.0.0.0/8", Group(GroupMember{f.GB, 32768}, GroupMember{nil, 32767})).
		Range("0.0.0.0/8", Single(f.Low)).
		Range("255.0.0.0/8", Single(f.High))
	b.Graph(6, f.Location, Null()).
		Range("2001:4860::/32", Single(f.US)).
		Range("::/8", Single(f.Low6)).
		Range("ff00::/8", Single(f.High6))
	b.Graph(4, f.Network, Null()).
		Range("8.8.8.0/24", Single(f.Google))
	b.Graph(6, f.Network, Null()).
		Range("2001:4860::/32", Single(f.Google))

	return f
}
