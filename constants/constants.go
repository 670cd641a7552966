package constants

const (
	AlgSha256            = "sha256"
	AlgSha512            = "sha512"
	BagDirName           = "bag"
	BagItVersion         = "1.0"
	BagSoftwareAgent     = "pigeon-services"
	DefaultPublisher     = "Center for Open Science"
	FileTypeManifest     = "manifest"
	FileTypeTagManifest  = "tag_manifest"
	PackageFileName      = "bag.zip"
	PayloadDirName       = "data"
	TagFileCharEncoding  = "UTF-8"
	WithdrawalKey        = "withdrawal_justification"
	WithdrawnDefaultNote = "This registration has been withdrawn"
	WithdrawnNotePrefix  = "Note this registration has been withdrawn: \n"
)

// Names of the payload files written into every bag.
const (
	ArchivedFilesZip = "archived_files.zip"
	ContributorsJSON = "contributors.json"
	DataCiteXML      = "datacite.xml"
	LogsJSON         = "logs.json"
	RegistrationJSON = "registration.json"
	WikisJSON        = "wikis.json"
)

// Operations and the NSQ topics that carry them.
const (
	OpArchive      = "archive"
	OpSyncMetadata = "metadata"
	TopicArchive   = "pigeon_archive"
	TopicMetadata  = "pigeon_metadata"
	ChannelSuffix  = "_worker_chan"
	RedisKeyPrefix = "pigeon:"
	TemplateGUID   = "{guid}"
)

var ManifestAlgorithms = []string{
	AlgSha256,
	AlgSha512,
}

// SyncableMetadataKeys lists the archive metadata keys a metadata
// sync may change. WithdrawalKey is a signal, not an archive field,
// and is stripped before the write.
var SyncableMetadataKeys = []string{
	"title",
	"description",
	"date",
	"modified",
	"osf_category",
	"osf_subjects",
	"osf_tags",
	"article_doi",
	"affiliated_institutions",
	"license",
	WithdrawalKey,
}
