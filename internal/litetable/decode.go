package litetable

import "bytes"

// Operation is the verb of a command received on the text command surface.
type Operation int

const (
	OperationUnknown Operation = iota
	OperationCount
	OperationRange
	OperationSet
	OperationWrite
	OperationDelete
)

func (o Operation) String() string {
	for _, v := range verbs {
		if v.op == o {
			return string(v.prefix[:len(v.prefix)-1])
		}
	}
	return "UNKNOWN"
}

var verbs = []struct {
	prefix []byte
	op     Operation
}{
	{[]byte("COUNT "), OperationCount},
	{[]byte("RANGE "), OperationRange},
	{[]byte("SET "), OperationSet},
	{[]byte("WRITE "), OperationWrite},
	{[]byte("DELETE "), OperationDelete},
}

// Decode decodes a buffer into a litetable operation message type and returns the payload.
// Verbs are case-sensitive and must be followed by a single space.
func Decode(buf []byte) (Operation, []byte) {
	if len(buf) < 4 { // shortest verb plus its space
		return OperationUnknown, nil
	}

	for _, v := range verbs {
		if bytes.HasPrefix(buf, v.prefix) {
			return v.op, buf[len(v.prefix):]
		}
	}

	return OperationUnknown, nil
}
