/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/azure/azure-exposure-reporter/arm"
	"github.com/azure/azure-exposure-reporter/auditor"
	"github.com/azure/azure-exposure-reporter/azure"
	"github.com/azure/azure-exposure-reporter/csv"
	"github.com/azure/azure-exposure-reporter/entra"
	"github.com/azure/azure-exposure-reporter/exposure"
	"github.com/azure/azure-exposure-reporter/filepathparser"
	"github.com/azure/azure-exposure-reporter/json"
	"github.com/azure/azure-exposure-reporter/report"
	"github.com/azure/azure-exposure-reporter/runlog"
)

var log = logrus.New()

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected exposure reports and export CSV overviews",
	Long: `The run command performs the main audit workflow:

1. Authenticates with the default Azure credential chain
2. Resolves the subscriptions to audit (configured or all readable ones)
3. Runs the selected report modules, one per resource type
4. Exports one CSV overview per report to <workingFolderPath>/output
5. Writes a dated error log when resources could not be audited

Examples:
  # Audit everything the credential can read
  azure-exposure-reporter run --workingFolderPath ./audit

  # Audit two subscriptions, key vaults and SQL servers only
  azure-exposure-reporter run --subscriptionIDs <id1>,<id2> --reports key-vaults,sql-servers`,
	Run: func(cmd *cobra.Command, args []string) {
		logVerbosity, _ := cmd.Flags().GetString("verbosity")
		logLevel, err := logrus.ParseLevel(logVerbosity)
		if err != nil {
			log.Fatalf("Invalid log level: %s", logVerbosity)
		}
		log.SetLevel(logLevel)
		log.SetFormatter(&logrus.TextFormatter{})
		if viper.GetBool("structuredLogs") {
			log.SetFormatter(&logrus.JSONFormatter{})
		}

		for key, value := range viper.GetViper().AllSettings() {
			log.Debugf("Command Flag: %s = %s", key, value)
		}

		workingFolderPath, err := filepathparser.ParsePath(viper.GetString("workingFolderPath"))
		if err != nil {
			log.Fatalf("Error getting working folder path: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		credential, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			log.Fatalf("Error building Azure credential: %v", err)
		}

		armClient := arm.NewArmClient(credential, arm.NewLogObserver(log), log)

		subscriptionIDs := viper.GetStringSlice("subscriptionIDs")
		if len(subscriptionIDs) == 0 {
			subscriptionIDs, err = armClient.GetSubscriptions(ctx)
			if err != nil {
				log.Fatalf("Error listing subscriptions: %v", err)
			}
			log.Infof("No subscriptions configured, auditing all %d readable ones", len(subscriptionIDs))
		}

		inventoryClient, err := azure.NewInventoryClient(
			credential,
			subscriptionIDs,
			viper.GetStringSlice("ignoreResourceIDPatterns"),
			log,
		)
		if err != nil {
			log.Fatalf("Error building inventory client: %v", err)
		}

		resolverClient := exposure.NewResolverClient(armClient, log)
		runLog := runlog.NewRunLog(filepathparser.LogFilePath(workingFolderPath), log)
		servicePrincipalClient := entra.NewServicePrincipalClient(credential, log)

		allModules := []report.IReportModule{
			report.NewStorageAccountModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewKeyVaultModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewSqlServerModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewPostgresqlServerModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewServiceBusModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewContainerRegistryModule(armClient, inventoryClient, resolverClient, runLog, log),
			report.NewServicePrincipalModule(servicePrincipalClient, log),
		}

		modules := selectModules(allModules, viper.GetStringSlice("reports"))

		auditClient := auditor.NewAuditClient(
			workingFolderPath,
			modules,
			csv.NewOverviewCsvClient(log),
			json.NewJsonClient(workingFolderPath, log),
			runLog,
			viper.GetBool("exportJson"),
			log,
		)

		if err := auditClient.Audit(ctx); err != nil {
			log.Fatalf("Audit failed: %v", err)
		}
	},
}

// selectModules filters the registry down to the requested report names. An
// empty selection means every module runs.
func selectModules(allModules []report.IReportModule, reportNames []string) []report.IReportModule {
	if len(reportNames) == 0 {
		return allModules
	}

	modulesByName := map[string]report.IReportModule{}
	for _, reportModule := range allModules {
		modulesByName[reportModule.Name()] = reportModule
	}

	modules := []report.IReportModule{}
	for _, reportName := range reportNames {
		reportModule, found := modulesByName[reportName]
		if !found {
			log.Fatalf("Unknown report: %s", reportName)
		}
		modules = append(modules, reportModule)
	}
	return modules
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.PersistentFlags().StringP("workingFolderPath", "w", ".", "Working folder path to use")
	viper.BindPFlag("workingFolderPath", runCmd.PersistentFlags().Lookup("workingFolderPath"))
	runCmd.PersistentFlags().StringSliceP("subscriptionIDs", "s", []string{}, "Subscription IDs to audit (default: all readable subscriptions)")
	viper.BindPFlag("subscriptionIDs", runCmd.PersistentFlags().Lookup("subscriptionIDs"))
	runCmd.PersistentFlags().StringSliceP("reports", "r", []string{}, "Report modules to run (default: all)")
	viper.BindPFlag("reports", runCmd.PersistentFlags().Lookup("reports"))
	runCmd.PersistentFlags().StringSlice("ignoreResourceIDPatterns", []string{}, "Regex patterns of resource IDs to skip")
	viper.BindPFlag("ignoreResourceIDPatterns", runCmd.PersistentFlags().Lookup("ignoreResourceIDPatterns"))
	runCmd.PersistentFlags().BoolP("exportJson", "j", false, "Also export each overview as JSON")
	viper.BindPFlag("exportJson", runCmd.PersistentFlags().Lookup("exportJson"))
}
