package constants

// Reserved metadata keys appended to every record.
const (
	KeySourceID        = "source_id"
	KeyRecordIndex     = "record_index"
	KeyExtractedAt     = "extracted_at"
	KeyExtractionError = "extraction_error"
)

// ExtractedAtLayout is the layout of the extracted_at metadata value.
const ExtractedAtLayout = "2006-01-02 15:04:05"

// DefaultResidentialRowThreshold is the first table row that belongs to the
// employee's own address block. Rows above it repeat the employer's address.
const DefaultResidentialRowThreshold = 15

// DefaultPriorityColumns lead the exported header, in this order, when present.
var DefaultPriorityColumns = []string{
	KeyRecordIndex,
	KeySourceID,
	"nome",
	"cpf",
	"rg",
	"data_nascimento",
	"data_admissao",
	"contrato",
	"funcao",
	"salario_inicial",
	"data_rescisao",
}

// IsMetadataKey reports whether key is one of the reserved metadata keys.
func IsMetadataKey(key string) bool {
	switch key {
	case KeySourceID, KeyRecordIndex, KeyExtractedAt, KeyExtractionError:
		return true
	}
	return false
}
