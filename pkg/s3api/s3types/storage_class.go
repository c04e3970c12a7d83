package s3types

import "fmt"

// StorageClass is one of the storage classes a put may request.
type StorageClass uint8

const (
	StorageClassUnknown StorageClass = iota
	StorageClassStandard
	StorageClassInfrequentAccess
	StorageClassGlacier
	StorageClassDeepArchive
	StorageClassIntelligentTiering
	StorageClassReducedRedundancy
	StorageClassOnezoneIA
)

var (
	storageClassTypes = map[StorageClass]string{
		StorageClassUnknown:            "UNKNOWN",
		StorageClassStandard:           "STANDARD",
		StorageClassInfrequentAccess:   "STANDARD_IA",
		StorageClassGlacier:            "GLACIER",
		StorageClassDeepArchive:        "DEEP_ARCHIVE",
		StorageClassIntelligentTiering: "INTELLIGENT_TIERING",
		StorageClassReducedRedundancy:  "REDUCED_REDUNDANCY",
		StorageClassOnezoneIA:          "ONEZONE_IA",
	}
	storageClassNames = map[string]StorageClass{
		"UNKNOWN":             StorageClassUnknown,
		"STANDARD":            StorageClassStandard,
		"STANDARD_IA":         StorageClassInfrequentAccess,
		"GLACIER":             StorageClassGlacier,
		"DEEP_ARCHIVE":        StorageClassDeepArchive,
		"INTELLIGENT_TIERING": StorageClassIntelligentTiering,
		"REDUCED_REDUNDANCY":  StorageClassReducedRedundancy,
		"ONEZONE_IA":          StorageClassOnezoneIA,
	}
)

func (sc StorageClass) String() string {
	if name, ok := storageClassTypes[sc]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseStorageClass accepts the wire names above. An empty name is
// StorageClassStandard, which stores assume when the header is absent.
func ParseStorageClass(name string) (StorageClass, error) {
	if name == "" {
		return StorageClassStandard, nil
	}
	if sc, ok := storageClassNames[name]; ok && sc != StorageClassUnknown {
		return sc, nil
	}
	return StorageClassUnknown, fmt.Errorf("invalid storage class %q", name)
}
