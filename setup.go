package main

import (
	"errors"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/keywatch/go-keywatch-client/adapter"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/repository"
	"github.com/keywatch/go-keywatch-client/services"
	"github.com/keywatch/go-keywatch-client/state"
)

// Configure DB repositories and create the DB selector
func ConfigDBSelector() repository.DBSelector {
	repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)

	keysRepo, keysErr := repository.NewCouchDBRepository(repoUrl, repository.DiagnosisKeys, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	exposuresRepo, expErr := repository.NewCouchDBRepository(repoUrl, repository.Exposures, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
	serverKeysRepo, srvErr := repository.NewCouchDBRepository(repoUrl, repository.ServerKeys, global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)

	repoErr := errors.Join(keysErr, expErr, srvErr)
	if repoErr != nil {
		global.Logger.Log("error", "failed to create repositories", "cause", repoErr.Error())
		panic(repoErr)
	}

	// REPOSITORY definitions
	dbSelector := repository.NewDBSelector()
	dbSelector.AddDB(keysRepo)
	dbSelector.AddDB(exposuresRepo)
	dbSelector.AddDB(serverKeysRepo)

	return dbSelector
}

// Configure the server adapter for the configured dialect
func ConfigServerAdapter() adapter.ServerAdapter {
	credentials := adapter.NewReceiptCredentialSource(global.Conf.Server.ReceiptPath)
	adp, err := adapter.New(global.Conf.Server.Dialect, adapter.Config{
		AuthPath:     global.Conf.Server.AuthPath,
		KeysPath:     global.Conf.Server.KeysPath,
		SubmitPath:   global.Conf.Server.SubmitPath,
		PreferBinary: global.Conf.Server.PreferBinary,
	}, credentials)
	if err != nil {
		panic(err)
	}
	return adp
}

// Wire the sync pipeline: auth, sync client, merge engine, exposure
// persistence and the orchestrator on top.
func ConfigOrchestrator(dbSelector repository.DBSelector, syncState *state.SyncState, detector services.ExposureDetector) *services.Orchestrator {
	keysRepo, keysErr := dbSelector.ChooseDB(repository.DiagnosisKeys)
	exposuresRepo, expErr := dbSelector.ChooseDB(repository.Exposures)
	if err := errors.Join(keysErr, expErr); err != nil {
		panic(err)
	}

	authService := services.NewAuthService(syncState)
	syncService := services.NewSyncService(ConfigServerAdapter(), authService, global.Conf.Server.BaseURL, global.Conf.Sync.Timeout(), false)
	mergeService := services.NewMergeService(repository.NewKeyStore(keysRepo))

	publisher := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	exposureService := services.NewExposureService(repository.NewExposureStore(exposuresRepo), publisher)

	return services.NewOrchestrator(
		syncService,
		mergeService,
		exposureService,
		detector,
		syncState,
		global.Conf.Sync.MinInterval(),
		global.Conf.Sync.PageSize(),
	)
}
