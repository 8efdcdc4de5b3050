package model

// VoteType is the tagged union of ballot kinds a poll may declare.
//
// SingleValue and MultipleValue are part of the declared schema so that polls
// can be created with them ahead of client support; incoming votes of those
// kinds are rejected until tallying for them is implemented.
type VoteType struct {
	SingleBinary   *SingleBinaryVote   `json:"SingleBinary,omitempty"`
	MultipleBinary *MultipleBinaryVote `json:"MultipleBinary,omitempty"`
	SingleValue    *SingleValueVote    `json:"SingleValue,omitempty"`
	MultipleValue  *MultipleValueVote  `json:"MultipleValue,omitempty"`
}

// SingleBinaryVote picks one choice with an implicit weight of 1.
type SingleBinaryVote struct {
	Choice string `json:"choice"`
}

// MultipleBinaryVote picks any subset of choices, each with weight 1.
type MultipleBinaryVote struct {
	Choices map[string]bool `json:"choices"`
}

// SingleValueVote picks one choice with a weight between 0 and 255.
type SingleValueVote struct {
	Choice string `json:"choice"`
	Value  uint8  `json:"value"`
}

// MultipleValueVote picks several choices with weights between 0 and 255.
type MultipleValueVote struct {
	Choices map[string]uint8 `json:"choices"`
}

// VoteKind identifies which variant a VoteType carries.
type VoteKind int

const (
	VoteKindInvalid VoteKind = iota
	VoteKindSingleBinary
	VoteKindMultipleBinary
	VoteKindSingleValue
	VoteKindMultipleValue
)

func (k VoteKind) String() string {
	switch k {
	case VoteKindSingleBinary:
		return "SingleBinary"
	case VoteKindMultipleBinary:
		return "MultipleBinary"
	case VoteKindSingleValue:
		return "SingleValue"
	case VoteKindMultipleValue:
		return "MultipleValue"
	default:
		return "Invalid"
	}
}

// Kind returns the variant of the union, or VoteKindInvalid when zero or
// more than one variant is set.
func (v VoteType) Kind() VoteKind {
	kind := VoteKindInvalid
	set := 0
	if v.SingleBinary != nil {
		kind, set = VoteKindSingleBinary, set+1
	}
	if v.MultipleBinary != nil {
		kind, set = VoteKindMultipleBinary, set+1
	}
	if v.SingleValue != nil {
		kind, set = VoteKindSingleValue, set+1
	}
	if v.MultipleValue != nil {
		kind, set = VoteKindMultipleValue, set+1
	}
	if set != 1 {
		return VoteKindInvalid
	}
	return kind
}
