package credstore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path"
	"time"

	"github.com/jonboulle/clockwork"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"

	"github.com/goatherd/ibex/aws"
)

// Metadata is the sidecar record written next to each profile. It lets
// us tell whether the shared-credentials entry still corresponds to
// what this tool last wrote, or has been changed out from under us.
type Metadata struct {
	RoleArn     string    `json:"roleArn"`
	AccessKeyID string    `json:"accessKeyId"`
	Expiration  time.Time `json:"expirationUtc"`
}

// Store persists temporary credentials as AWS shared-credentials-file
// profiles plus per-profile metadata sidecars. No locking: the tool is
// a short-lived command and concurrent invocations get last-writer-wins.
type Store struct {
	CredentialsFile string
	MetadataDir     string
	Clock           clockwork.Clock
	Log             *log.Entry
}

// NewStore builds a store over ~/.aws/credentials and the ibex data
// directory.
func NewStore() (*Store, error) {
	home, err := homedir.Dir()

	if err != nil {
		return nil, err
	}

	dataPath := os.Getenv("XDG_DATA_HOME")

	if dataPath == "" {
		dataPath = path.Join(home, ".local", "share")
	}

	return &Store{
		CredentialsFile: path.Join(home, ".aws", "credentials"),
		MetadataDir:     path.Join(dataPath, "ibex", "profiles"),
		Clock:           clockwork.NewRealClock(),
		Log:             log.WithField("component", "credstore"),
	}, nil
}

func (s *Store) metadataFile(profileName string) string {
	return path.Join(s.MetadataDir, profileName+".json")
}

// Save writes the credential into the shared credentials file under
// profileName and records the sidecar metadata.
func (s *Store) Save(profileName string, credential aws.Credential) error {
	err := os.MkdirAll(path.Dir(s.CredentialsFile), 0700)

	if err != nil {
		return err
	}

	credentialsFile, err := ini.LooseLoad(s.CredentialsFile)

	if err != nil {
		return err
	}

	section := credentialsFile.Section(profileName)
	section.Key("aws_access_key_id").SetValue(credential.AccessKeyID)
	section.Key("aws_secret_access_key").SetValue(credential.SecretAccessKey)
	section.Key("aws_session_token").SetValue(credential.SessionToken)

	err = credentialsFile.SaveTo(s.CredentialsFile)

	if err != nil {
		return err
	}

	err = os.MkdirAll(s.MetadataDir, 0700)

	if err != nil {
		return err
	}

	metadata, err := json.Marshal(Metadata{
		RoleArn:     credential.RoleArn,
		AccessKeyID: credential.AccessKeyID,
		Expiration:  credential.Expiration.UTC(),
	})

	if err != nil {
		return err
	}

	return ioutil.WriteFile(s.metadataFile(profileName), metadata, 0600)
}

// TryLoad returns the cached credential for profileName, or nil if
// there is nothing worth resuming: missing or unreadable sidecar, a
// shared-credentials entry that no longer matches the sidecar's access
// key (changed out-of-band), or less than the minimum lifetime left.
// A corrupt store is a cache miss, never a hard failure.
func (s *Store) TryLoad(profileName string) *aws.Credential {
	metadataBody, err := ioutil.ReadFile(s.metadataFile(profileName))

	if err != nil {
		s.Log.WithError(err).Debug("No usable profile metadata")
		return nil
	}

	var metadata Metadata

	err = json.Unmarshal(metadataBody, &metadata)

	if err != nil {
		s.Log.WithError(err).Warn("Profile metadata is unreadable, re-authenticating")
		return nil
	}

	credentialsFile, err := ini.Load(s.CredentialsFile)

	if err != nil {
		s.Log.WithError(err).Debug("No shared credentials file")
		return nil
	}

	section, err := credentialsFile.GetSection(profileName)

	if err != nil {
		return nil
	}

	accessKeyID := section.Key("aws_access_key_id").String()

	if accessKeyID == "" || accessKeyID != metadata.AccessKeyID {
		s.Log.WithField("profile", profileName).Warn("Stored credentials don't match what was last written, re-authenticating")
		return nil
	}

	remaining := metadata.Expiration.Sub(s.Clock.Now())

	if remaining < MinimumLifetime {
		s.Log.WithField("profile", profileName).Debug("Stored credentials are expired or nearly so")
		return nil
	}

	return &aws.Credential{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: section.Key("aws_secret_access_key").String(),
		SessionToken:    section.Key("aws_session_token").String(),
		Expiration:      metadata.Expiration,
		RoleArn:         metadata.RoleArn,
	}
}

// Forget drops the sidecar for a profile, forcing re-authentication on
// the next run. The shared-credentials entry is left alone.
func (s *Store) Forget(profileName string) error {
	err := os.Remove(s.metadataFile(profileName))

	if os.IsNotExist(err) {
		return nil
	}

	return err
}
