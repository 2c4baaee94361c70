package handlers

import "fmt"

const vec3Schema = `{"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3}`

func nameSchema(param string) string {
	return fmt.Sprintf(`{
  "type": "object",
  "required": [%q],
  "properties": {%q: {"type": "string", "minLength": 1}}
}`, param, param)
}

var createObjectSchema = `{
  "type": "object",
  "properties": {
    "type": {"type": "string"},
    "name": {"type": "string"},
    "location": ` + vec3Schema + `,
    "rotation": ` + vec3Schema + `,
    "scale": ` + vec3Schema + `,
    "visible": {"type": "boolean"}
  }
}`

var modifyObjectSchema = `{
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "location": ` + vec3Schema + `,
    "rotation": ` + vec3Schema + `,
    "scale": ` + vec3Schema + `,
    "visible": {"type": "boolean"}
  }
}`

const setMaterialSchema = `{
  "type": "object",
  "required": ["object_name"],
  "properties": {
    "object_name": {"type": "string", "minLength": 1},
    "material_name": {"type": "string", "minLength": 1},
    "color": {
      "type": "array",
      "items": {"type": "number", "minimum": 0, "maximum": 1},
      "minItems": 3,
      "maxItems": 4
    }
  }
}`

const importModelSchema = `{
  "type": "object",
  "anyOf": [{"required": ["url"]}, {"required": ["filepath"]}],
  "properties": {
    "url": {"type": "string", "minLength": 1},
    "filepath": {"type": "string", "minLength": 1},
    "name": {"type": "string"}
  }
}`

const executeCodeSchema = `{
  "type": "object",
  "required": ["code"],
  "properties": {"code": {"type": "string"}}
}`

const assetTypeEnum = `{"type": "string", "enum": ["hdris", "textures", "models", "all"]}`

const categoriesSchema = `{
  "type": "object",
  "required": ["asset_type"],
  "properties": {"asset_type": ` + assetTypeEnum + `}
}`

const searchSchema = `{
  "type": "object",
  "properties": {
    "asset_type": ` + assetTypeEnum + `,
    "categories": {
      "anyOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

const downloadSchema = `{
  "type": "object",
  "required": ["asset_id", "asset_type"],
  "properties": {
    "asset_id": {"type": "string", "minLength": 1},
    "asset_type": {"type": "string", "enum": ["hdris", "textures", "models"]},
    "resolution": {"type": "string", "minLength": 1},
    "file_format": {"type": "string", "minLength": 1}
  }
}`

const setTextureSchema = `{
  "type": "object",
  "required": ["object_name", "texture_id"],
  "properties": {
    "object_name": {"type": "string", "minLength": 1},
    "texture_id": {"type": "string", "minLength": 1}
  }
}`
