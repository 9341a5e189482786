package parallel

// MXCSR control bits.
const (
	mxcsrDAZ = 1 << 6  // Denormals are zero.
	mxcsrFTZ = 1 << 15 // Flush to zero.
)

func getMXCSR() uint32

func setMXCSR(v uint32)

const denormalSupported = true

// setDenormalAsZero enables DAZ and FTZ on the calling thread.
func setDenormalAsZero() {
	setMXCSR(getMXCSR() | mxcsrDAZ | mxcsrFTZ)
}

func denormalAsZero() bool {
	return getMXCSR()&(mxcsrDAZ|mxcsrFTZ) == mxcsrDAZ|mxcsrFTZ
}
