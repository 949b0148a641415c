package codec

// Protocol version announced in the join request.
const (
	MajorVersion uint8 = 3
	MinorVersion uint8 = 1
	PatchVersion uint8 = 0
	VersionLabel       = "-civlink"
)

// OurCapability lists the optional protocol features this client speaks.
const OurCapability = "+civlink-3.1 ping processing-marks"
