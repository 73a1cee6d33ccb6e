package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// modelDocument is the on-disk YAML form of a class model
type modelDocument struct {
	Classes []classDocument `yaml:"classes"`
}

type classDocument struct {
	Name        string               `yaml:"name"`
	Table       string               `yaml:"table"`
	Identity    string               `yaml:"identity"`
	Implements  []string             `yaml:"implements"`
	Fields      []fieldDocument      `yaml:"fields"`
	References  []referenceDocument  `yaml:"references"`
	Collections []collectionDocument `yaml:"collections"`
}

type fieldDocument struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Column   string `yaml:"column"`
	Length   *int   `yaml:"length"`
	Required bool   `yaml:"required"`
	Unique   bool   `yaml:"unique"`
}

type referenceDocument struct {
	Name     string `yaml:"name"`
	Class    string `yaml:"class"`
	Column   string `yaml:"column"`
	Required bool   `yaml:"required"`
}

type collectionDocument struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	Class          string `yaml:"class"`
	Reverse        string `yaml:"reverse"`
	JoinTable      string `yaml:"join_table"`
	ForeignKey     string `yaml:"foreign_key"`
	AssociationKey string `yaml:"association_key"`
}

// LoadModelFile reads a YAML class model from path into a validated registry
func LoadModelFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model file: %w", err)
	}
	defer f.Close()

	return LoadModel(f)
}

// LoadModel reads a YAML class model into a validated registry
func LoadModel(r io.Reader) (*Registry, error) {
	var doc modelDocument
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	registry := NewRegistry()
	for _, cd := range doc.Classes {
		class, err := cd.build()
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", cd.Name, err)
		}
		if err := registry.Register(class); err != nil {
			return nil, err
		}
	}

	if err := registry.ValidateAll(); err != nil {
		return nil, err
	}
	return registry, nil
}

func (cd classDocument) build() (*ClassSchema, error) {
	class := NewClassSchema(cd.Name)
	if cd.Table != "" {
		class.TableName = cd.Table
	}
	if cd.Identity != "" {
		class.IdentityField = cd.Identity
	}
	class.Implements = cd.Implements

	for _, fd := range cd.Fields {
		base, err := ParsePrimitiveType(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fd.Name, err)
		}
		class.AddField(&Field{
			Name:   fd.Name,
			Column: fd.Column,
			Type:   &TypeSpec{BaseType: base, Nullable: !fd.Required, Length: fd.Length},
			Unique: fd.Unique,
		})
	}

	for _, rd := range cd.References {
		class.AddReference(&Reference{
			Name:        rd.Name,
			TargetClass: rd.Class,
			Column:      rd.Column,
			Nullable:    !rd.Required,
		})
	}

	for _, cold := range cd.Collections {
		kind := OneToMany
		if cold.Kind != "" {
			k, err := ParseCollectionKind(cold.Kind)
			if err != nil {
				return nil, fmt.Errorf("collection %s: %w", cold.Name, err)
			}
			kind = k
		} else if cold.JoinTable != "" {
			kind = ManyToMany
		}
		class.AddCollection(&Collection{
			Name:           cold.Name,
			Kind:           kind,
			TargetClass:    cold.Class,
			Reverse:        cold.Reverse,
			JoinTable:      cold.JoinTable,
			ForeignKey:     cold.ForeignKey,
			AssociationKey: cold.AssociationKey,
		})
	}

	return class, nil
}
