package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"gopkg.in/yaml.v3"

	renderbridge "github.com/goliatone/go-renderbridge"
)

func main() {
	configPath := flag.String("config", "renderbridge.yaml", "renderer config file")
	name := flag.String("template", "", "template to render, e.g. blog::post (prompted when empty)")
	dataPath := flag.String("data", "", "JSON or YAML file holding render parameters")
	output := flag.String("output", "", "output file (stdout if empty)")
	list := flag.Bool("list", false, "list template paths and templates, then exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n\nRender a template using a renderbridge config.\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx := context.Background()

	cfg, err := renderbridge.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	bridge, err := renderbridge.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to build renderer: %v", err)
	}

	if *list {
		if err := printListing(bridge); err != nil {
			log.Fatalf("Failed to list templates: %v", err)
		}
		return
	}

	templateName := strings.TrimSpace(*name)
	if templateName == "" {
		templateName, err = promptTemplate(bridge)
		if err != nil {
			log.Fatalf("Failed to select template: %v", err)
		}
	}

	params, err := loadParams(*dataPath)
	if err != nil {
		log.Fatalf("Failed to load data: %v", err)
	}

	out, err := bridge.Renderer.RenderContext(ctx, templateName, params)
	if err != nil {
		log.Fatalf("Failed to render %s: %v", templateName, err)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(out), 0o644); err != nil {
			log.Fatalf("Failed to write output: %v", err)
		}
		fmt.Printf("Template written to %s\n", *output)
		return
	}
	fmt.Print(out)
}

func printListing(bridge *renderbridge.Bridge) error {
	for _, p := range bridge.Renderer.Paths() {
		namespace := p.Namespace
		if namespace == "" {
			namespace = "(main)"
		}
		fmt.Printf("path\t%s\t%s\n", namespace, p.Path)
	}
	names, err := bridge.Loader.Templates()
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Printf("template\t%s\n", name)
	}
	return nil
}

func promptTemplate(bridge *renderbridge.Bridge) (string, error) {
	if !interactive() {
		return "", fmt.Errorf("-template is required when stdin is not a terminal")
	}
	names, err := bridge.Loader.Templates()
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no templates found in %d configured paths", len(bridge.Renderer.Paths()))
	}

	var selected string
	prompt := &survey.Select{
		Message: "Template to render:",
		Options: names,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}
	return selected, nil
}

func loadParams(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := yaml.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return params, nil
}

func interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
