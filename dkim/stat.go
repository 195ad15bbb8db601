package dkim

import "fmt"

// Stat is the status of a library or handle operation.
type Stat int

const (
	StatOK            Stat = 0
	StatBadSig        Stat = 1
	StatNoSig         Stat = 2
	StatNoKey         Stat = 3
	StatCantVrfy      Stat = 4
	StatSyntax        Stat = 5
	StatNoResource    Stat = 6
	StatInternal      Stat = 7
	StatRevoked       Stat = 8
	StatInvalid       Stat = 9
	StatNotImplement  Stat = 10
	StatKeyFail       Stat = 11
	StatCBReject      Stat = 12
	StatCBInvalid     Stat = 13
	StatCBTryAgain    Stat = 14
	StatCBError       Stat = 15
	StatMultiDNSReply Stat = 16
	StatSigGen        Stat = 17
)

var resultStrings = map[Stat]string{
	StatOK:            "Success",
	StatBadSig:        "Bad signature",
	StatNoSig:         "No signature",
	StatNoKey:         "No key",
	StatCantVrfy:      "Can't verify signature",
	StatSyntax:        "Syntax error",
	StatNoResource:    "Resource unavailable",
	StatInternal:      "Internal error",
	StatRevoked:       "Key revoked",
	StatInvalid:       "Invalid parameter(s)",
	StatNotImplement:  "Not implemented",
	StatKeyFail:       "Key retrieval failed",
	StatCBReject:      "Reject requested",
	StatCBInvalid:     "Callback result invalid",
	StatCBTryAgain:    "Callback temporary failure",
	StatCBError:       "Callback error",
	StatMultiDNSReply: "Multiple DNS replies",
	StatSigGen:        "Signature generation error",
}

// ResultString returns the human-readable description of a status.
func ResultString(s Stat) string {
	if str, ok := resultStrings[s]; ok {
		return str
	}
	return fmt.Sprintf("Unknown status %d", int(s))
}

func (s Stat) String() string {
	return ResultString(s)
}

// Error makes a Stat usable as an error value, so callers can match it with errors.Is.
func (s Stat) Error() string {
	return "dkim: " + ResultString(s)
}

// CBStat is the value returned by a library callback.
type CBStat int

const (
	CBContinue CBStat = 0
	CBReject   CBStat = 1
	CBTryAgain CBStat = 2
	CBNotFound CBStat = 3
	CBError    CBStat = 4
	CBDefault  CBStat = 5
)

func (s CBStat) String() string {
	switch s {
	case CBContinue:
		return "continue"
	case CBReject:
		return "reject"
	case CBTryAgain:
		return "tryagain"
	case CBNotFound:
		return "notfound"
	case CBError:
		return "error"
	case CBDefault:
		return "default"
	}
	return fmt.Sprintf("cbstat(%d)", int(s))
}

// Mode tells whether a handle signs or verifies.
type Mode int

const (
	ModeSign Mode = iota + 1
	ModeVerify
)

func (m Mode) String() string {
	switch m {
	case ModeSign:
		return "sign"
	case ModeVerify:
		return "verify"
	}
	return "unknown"
}

// BodyHashStatus is the outcome of comparing a signature's bh= against the message body.
type BodyHashStatus int

const (
	BodyHashUntested BodyHashStatus = -1
	BodyHashMatch    BodyHashStatus = 0
	BodyHashMismatch BodyHashStatus = 1
)

// SigFlag holds per-signature processing flags.
type SigFlag uint

const (
	// SigFlagIgnore excludes a signature from key retrieval and verification.
	// Prescreen callbacks set it with SigInfo.Ignore.
	SigFlagIgnore SigFlag = 1 << iota
	SigFlagProcessed
	SigFlagPassed
	SigFlagTestKey
	SigFlagKeyLoaded
)

// Feature identifies an optional library capability.
type Feature int

const (
	FeatureSHA256 Feature = iota
	FeatureED25519
	FeatureRSASHA1
	FeatureKeyCache
	FeatureDNSSEC
	FeatureBodyLengthDB
)

// libVersion is encoded as 0xMMmmpp00.
const libVersion uint32 = 0x02010000

// LibVersion returns the library version.
func LibVersion() uint32 {
	return libVersion
}
