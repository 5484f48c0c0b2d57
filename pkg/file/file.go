package file

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// FileOperations defines the file reads the agent needs.
type FileOperations interface {
	IsFileExists(filePath string) (bool, error)
	ReadFileRaw(filePath string) ([]byte, error)
	ReadYamlFile(filePath string, v any) error
}

// FileService implements the FileOperations interface using standard file operations.
type FileService struct{}

// NewFileService creates a new instance of FileService.
func NewFileService() *FileService {
	return &FileService{}
}

// IsFileExists checks if the file exists and returns boolean and error
func (fs *FileService) IsFileExists(filePath string) (bool, error) {
	_, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	}

	// checking err == nil because of permission related error
	return err == nil, err
}

// ReadFileRaw reads the contents of the file at filePath and returns it as a byte array.
func (fs *FileService) ReadFileRaw(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// ReadYamlFile reads and unmarshals YAML data from the given file.
func (fs *FileService) ReadYamlFile(filePath string, v any) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	return decoder.Decode(v)
}
